package app

import (
	"fmt"
	"time"

	"jackpotwatch/internal/probe"
	"jackpotwatch/internal/report"
)

// ProbeOptions configure the emit-probe command.
type ProbeOptions struct {
	ReportPath         string
	Output             string
	WorkloadOutcome    string
	Artifacts          []string
	Warnings           []string
	FreshnessThreshold time.Duration
	Strict             bool
}

// EmitProbe projects the runtime report into a probe file. Unless Strict is
// set, failures write an all-FAIL probe and return nil.
func (a *App) EmitProbe(opts ProbeOptions) error {
	meta := report.MetaFromEnv()

	err := a.emitProbe(opts, meta)
	if err == nil {
		fmt.Fprintf(a.Stdout, "Wrote probe: %s\n", opts.Output)
		return nil
	}
	if opts.Strict {
		return err
	}

	a.Logger.Warn().Err(err).Msg("probe emitter failed; writing fallback")
	if writeErr := probe.Write(opts.Output, probe.Fallback(a.now(), meta, err)); writeErr != nil {
		return writeErr
	}
	fmt.Fprintf(a.Stderr, "Emitter error ignored (non-blocking): %v\n", err)
	return nil
}

func (a *App) emitProbe(opts ProbeOptions, meta report.Meta) error {
	rep, err := report.Load(opts.ReportPath)
	if err != nil {
		return err
	}
	if meta.Repo == "" {
		meta = rep.Meta
	}

	p := probe.Build(rep, meta, probe.Options{
		WorkloadOutcome:    opts.WorkloadOutcome,
		Artifacts:          opts.Artifacts,
		Warnings:           opts.Warnings,
		FreshnessThreshold: opts.FreshnessThreshold,
	})
	return probe.Write(opts.Output, p)
}
