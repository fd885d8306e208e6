package fetcher

import (
	"context"
	"fmt"

	"jackpotwatch/internal/parser"
)

// PrizeSource retrieves the next draw's jackpot estimate and draw time.
type PrizeSource interface {
	FetchNextDraw(ctx context.Context) (parser.DrawSnapshot, error)
}

// FetchError reports a failed or unsuccessful request for the results page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
