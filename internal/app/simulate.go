package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jackpotwatch/internal/fetcher"
	"jackpotwatch/internal/parser"
	"jackpotwatch/internal/report"
	"jackpotwatch/internal/service"
	"jackpotwatch/internal/state"
)

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	Jackpot  decimal.Decimal
	DrawText string
	// Send delivers the rendered alert to Telegram instead of printing it.
	Send bool
}

// Simulate runs the pipeline against a fixed jackpot and draw text. The dedupe
// state lives in memory and no runtime report is written.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) (*report.Report, error) {
	settings := a.Settings
	settings.DryRunFlag = "1"
	if opts.Send {
		settings.DryRunFlag = ""
	}

	source := &staticSource{snapshot: parser.NewSnapshot(opts.Jackpot, opts.DrawText)}
	svc := service.New(settings, &state.MemoryStore{}, a.Stdout, a.Logger).WithSource(source)

	rep := report.New(a.now(), report.Meta{})
	err := svc.Run(ctx, rep)
	exitCode := 0
	if err != nil {
		rep.Warn(err.Error())
		exitCode = 1
	}
	rep.Finalize(a.now(), exitCode)

	fmt.Fprintf(a.Stdout, "simulated run status: %s\n", rep.Status)
	return rep, err
}

type staticSource struct {
	snapshot parser.DrawSnapshot
}

func (s *staticSource) FetchNextDraw(ctx context.Context) (parser.DrawSnapshot, error) {
	return s.snapshot, ctx.Err()
}

var _ fetcher.PrizeSource = (*staticSource)(nil)
