package cli

import (
	"time"

	"github.com/spf13/cobra"

	"jackpotwatch/internal/app"
)

var watchOpts app.WatchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run check on an interval or cron schedule until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), watchOpts)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchOpts.Interval, "interval", time.Hour, "Interval between checks")
	watchCmd.Flags().BoolVar(&watchOpts.AlignToStart, "align", true, "Align interval ticks to wall-clock multiples of the interval")
	watchCmd.Flags().StringVar(&watchOpts.Cron, "cron", "", "Cron expression (5 fields, CRON_TZ= prefix allowed); overrides --interval")
	watchCmd.Flags().BoolVar(&watchOpts.RunAtStart, "run-now", false, "Run one check immediately before the first scheduled tick")
}
