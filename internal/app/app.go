package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"jackpotwatch/internal/config"
	"jackpotwatch/internal/metrics"
	"jackpotwatch/internal/report"
	"jackpotwatch/internal/service"
	"jackpotwatch/internal/state"
)

// App aggregates settings and shared dependencies for the CLI commands.
type App struct {
	Settings config.Settings
	Logger   zerolog.Logger
	Stdout   io.Writer
	Stderr   io.Writer

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(settings config.Settings, logger zerolog.Logger) *App {
	return &App{
		Settings: settings,
		Logger:   logger.With().Str("component", "app").Logger(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Check runs the pipeline once and returns the process exit code. The runtime
// report is finalized and written on every path, including panics.
func (a *App) Check(ctx context.Context) (exitCode int) {
	started := a.now()
	rep := report.New(started, report.MetaFromEnv())
	exitCode = 1

	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error().Interface("panic", r).Msg("check panicked")
			rep.Warn(fmt.Sprint(r))
			fmt.Fprintf(a.Stderr, "Error: %v\n", r)
			exitCode = 1
		}
		a.writeReport(rep, started, exitCode)
	}()

	svc := service.New(a.Settings, state.NewFileStore(a.Settings.StatePath), a.Stdout, a.Logger)
	if err := svc.Run(ctx, rep); err != nil {
		a.Logger.Error().Err(err).Msg("check failed")
		rep.Warn(err.Error())
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) writeReport(rep *report.Report, started time.Time, exitCode int) {
	path := a.Settings.RuntimeReportPath
	final := a.finalizeReport(rep, started, exitCode, path)

	if err := final.Write(path); err != nil {
		a.Logger.Error().Err(err).Str("path", path).Msg("runtime report not written")
		fmt.Fprintf(a.Stderr, "Warning: failed to write runtime report: %v\n", err)
	} else {
		a.Logger.Info().Str("path", path).Str("status", string(final.Status)).Int("exit_code", exitCode).Msg("runtime report written")
	}

	if textfile := a.Settings.MetricsTextfilePath; textfile != "" {
		if err := metrics.WriteReport(textfile, final); err != nil {
			a.Logger.Warn().Err(err).Str("path", textfile).Msg("metrics textfile not written")
		}
	}
}

// finalizeReport falls back to an all-FAIL report if finalizing panics.
func (a *App) finalizeReport(rep *report.Report, started time.Time, exitCode int, path string) (final *report.Report) {
	finished := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error().Interface("panic", r).Msg("runtime report build failed")
			final = report.Fallback(started, finished, rep.Meta, r)
		}
	}()

	rep.Finalize(finished, exitCode)
	rep.Breakpoint(report.BreakpointFinal, report.StatusOK, fmt.Sprintf("Runtime report prepared at %s.", path))
	return rep
}
