package cli

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the next draw once, alert if above threshold, and write the runtime report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := getApp().Check(cmd.Context()); code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}
