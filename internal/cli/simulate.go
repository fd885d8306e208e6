package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"jackpotwatch/internal/app"
)

var (
	simJackpot string
	simDraw    string
	simSend    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the pipeline against a given jackpot and draw text",
	Long:  "Runs the threshold rule, template rendering and (with --send) Telegram delivery against a fixed jackpot estimate. Dedupe state is kept in memory and no runtime report is written.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jackpot, err := decimal.NewFromString(simJackpot)
		if err != nil {
			return fmt.Errorf("invalid --jackpot: %w", err)
		}
		_, err = getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Jackpot:  jackpot,
			DrawText: simDraw,
			Send:     simSend,
		})
		return err
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simJackpot, "jackpot", "", "Jackpot estimate, e.g. 4500000")
	simulateCmd.Flags().StringVar(&simDraw, "draw", "", "Draw date/time text, e.g. \"Mon, 08 Jul 2024, 6:30pm\"")
	simulateCmd.Flags().BoolVar(&simSend, "send", false, "Deliver the alert to Telegram")
	_ = simulateCmd.MarkFlagRequired("jackpot")
	_ = simulateCmd.MarkFlagRequired("draw")
}
