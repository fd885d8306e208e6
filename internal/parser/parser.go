// Package parser turns a lottery results page into a DrawSnapshot.
//
// The page is flattened into one line of visible text and the two fields of
// interest are located by anchor phrases ("next jackpot", "next draw") and
// bounded forward windows, so the extraction survives changes to tag nesting
// and node order around those labels.
package parser

import (
	"github.com/shopspring/decimal"
)

// DrawSnapshot is the result of a single fetch of the results page.
type DrawSnapshot struct {
	JackpotEstimate  decimal.Decimal
	DrawDateTimeText string
	DrawIdentity     string
}

// Trace exposes the intermediate values of a parse for the debug command.
type Trace struct {
	NormalizedText string
	JackpotMatch   Match
	DrawMatch      Match
}

// Parse extracts the next jackpot estimate and next draw text from raw markup.
func Parse(raw string) (DrawSnapshot, error) {
	snapshot, _, err := ParseWithTrace(raw)
	return snapshot, err
}

// ParseWithTrace is Parse that also returns what each anchor matched.
func ParseWithTrace(raw string) (DrawSnapshot, Trace, error) {
	trace := Trace{NormalizedText: NormalizeText(raw)}

	amount, jackpotMatch, err := ExtractJackpot(trace.NormalizedText)
	if err != nil {
		return DrawSnapshot{}, trace, err
	}
	trace.JackpotMatch = jackpotMatch

	drawText, drawMatch, err := ExtractDrawText(trace.NormalizedText)
	if err != nil {
		return DrawSnapshot{}, trace, err
	}
	trace.DrawMatch = drawMatch

	return NewSnapshot(amount, drawText), trace, nil
}

// NewSnapshot builds a snapshot and derives its draw identity.
func NewSnapshot(jackpot decimal.Decimal, drawText string) DrawSnapshot {
	return DrawSnapshot{
		JackpotEstimate:  jackpot,
		DrawDateTimeText: drawText,
		DrawIdentity:     DrawIdentity(drawText),
	}
}
