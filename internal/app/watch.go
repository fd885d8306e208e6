package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"jackpotwatch/internal/scheduler"
)

// WatchOptions configure the watch command.
type WatchOptions struct {
	Interval     time.Duration
	AlignToStart bool
	Cron         string
	RunAtStart   bool
}

// Watch runs Check on a schedule until SIGINT or SIGTERM.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     opts.Interval,
		AlignToStart: opts.AlignToStart,
		Cron:         opts.Cron,
	}, a.Logger)
	if err != nil {
		return err
	}

	tick := func(ctx context.Context, _ time.Time) error {
		if code := a.Check(ctx); code != 0 {
			return fmt.Errorf("check exited with code %d", code)
		}
		return nil
	}

	if opts.RunAtStart {
		if err := tick(ctx, a.now()); err != nil {
			a.Logger.Error().Err(err).Msg("initial check failed")
		}
	}

	a.Logger.Info().Dur("interval", opts.Interval).Str("cron", opts.Cron).Msg("starting watch")
	err = sched.Run(ctx, tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch stopped")
	return nil
}
