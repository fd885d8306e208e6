package cli

import (
	"github.com/spf13/cobra"

	"jackpotwatch/internal/app"
	"jackpotwatch/internal/config"
)

var probeOpts app.ProbeOptions

var probeCmd = &cobra.Command{
	Use:   "emit-probe",
	Short: "Write ops/probe.json from the last runtime report",
	Args:  cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("report") {
			probeOpts.ReportPath = getApp().Settings.RuntimeReportPath
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EmitProbe(probeOpts)
	},
}

func init() {
	flags := probeCmd.Flags()
	flags.StringVar(&probeOpts.ReportPath, "report", "", "Runtime report to read (default OPS_RUNTIME_PATH)")
	flags.StringVar(&probeOpts.Output, "output", "ops/probe.json", "Probe file to write")
	flags.StringVar(&probeOpts.WorkloadOutcome, "workload-outcome", "", "Outcome of the workload step (success, failure, cancelled, skipped)")
	flags.StringArrayVar(&probeOpts.Artifacts, "artifact", nil, "Artifact link as label=url (repeatable)")
	flags.StringArrayVar(&probeOpts.Warnings, "warning", nil, "Extra warning (repeatable)")
	flags.DurationVar(&probeOpts.FreshnessThreshold, "freshness-threshold", config.DefaultFreshnessThreshold, "Lag above which the probe reports stale data")
	flags.BoolVar(&probeOpts.Strict, "strict", false, "Fail instead of writing a fallback probe")
}
