package cli

import (
	"github.com/spf13/cobra"

	"jackpotwatch/internal/app"
)

var parseOpts app.ParseOptions

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Fetch the results page and print every extraction step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getApp().Parse(cmd.Context(), parseOpts); err != nil {
			return &exitError{code: 1}
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseOpts.File, "file", "", "Parse a saved HTML file instead of fetching")
	parseCmd.Flags().StringVar(&parseOpts.URL, "url", "", "Override prize_source.url")
}
