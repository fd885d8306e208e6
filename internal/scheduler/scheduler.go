package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked at every scheduled time.
type TickFunc func(ctx context.Context, at time.Time) error

// Schedule yields the first activation time strictly after the given time.
// cron.Schedule satisfies it.
type Schedule interface {
	Next(time.Time) time.Time
}

// Options tune scheduler behaviour. Cron takes precedence over Interval.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	Cron         string
	StartupDelay time.Duration
}

// Scheduler drives periodic execution of checks, one at a time.
type Scheduler struct {
	opts     Options
	schedule Schedule
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	schedule, err := buildSchedule(opts)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

func buildSchedule(opts Options) (Schedule, error) {
	if expr := strings.TrimSpace(opts.Cron); expr != "" {
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
		}
		return schedule, nil
	}
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	return intervalSchedule{interval: opts.Interval, align: opts.AlignToStart}, nil
}

// Run blocks, invoking tick at each scheduled time until ctx is cancelled.
// Tick errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.schedule.Next(time.Now().UTC())
	for {
		if next.IsZero() {
			return errors.New("schedule has no further activations")
		}
		delay := time.Until(next)
		if delay < 0 {
			next = s.schedule.Next(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.Info().Time("scheduled", next).Msg("executing scheduled check")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("scheduled", next).Msg("scheduled check failed")
		}

		next = s.schedule.Next(next)
	}
}

type intervalSchedule struct {
	interval time.Duration
	align    bool
}

func (s intervalSchedule) Next(after time.Time) time.Time {
	if !s.align {
		return after.Add(s.interval)
	}
	next := after.Truncate(s.interval)
	if !next.After(after) {
		next = next.Add(s.interval)
	}
	return next
}
