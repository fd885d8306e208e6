package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"jackpotwatch/internal/parser"
)

const maxPageBytes = 4 << 20

// TotoOptions parameterise the results page fetcher.
type TotoOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Toto fetches and parses the TOTO next draw estimate page.
type Toto struct {
	opts   TotoOptions
	client *http.Client
	logger zerolog.Logger
}

// NewToto constructs a results page fetcher.
func NewToto(opts TotoOptions, logger zerolog.Logger) *Toto {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "Mozilla/5.0"
	}

	return &Toto{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "toto_fetcher").Logger(),
	}
}

// FetchPage downloads the results page and returns it decoded to UTF-8.
func (t *Toto) FetchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.opts.URL, nil)
	if err != nil {
		return "", &FetchError{URL: t.opts.URL, Err: err}
	}
	req.Header.Set("User-Agent", t.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: t.opts.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: t.opts.URL, StatusCode: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &FetchError{URL: t.opts.URL, Err: fmt.Errorf("decode body: %w", err)}
	}
	page, err := io.ReadAll(body)
	if err != nil {
		return "", &FetchError{URL: t.opts.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	t.logger.Debug().Int("bytes", len(page)).Int("status", resp.StatusCode).Msg("results page fetched")
	return string(page), nil
}

// FetchNextDraw downloads and parses the results page.
func (t *Toto) FetchNextDraw(ctx context.Context) (parser.DrawSnapshot, error) {
	page, err := t.FetchPage(ctx)
	if err != nil {
		return parser.DrawSnapshot{}, err
	}

	snapshot, err := parser.Parse(page)
	if err != nil {
		return parser.DrawSnapshot{}, err
	}

	t.logger.Info().
		Str("jackpot_estimate", snapshot.JackpotEstimate.String()).
		Str("draw", snapshot.DrawIdentity).
		Msg("next draw parsed")
	return snapshot, nil
}

var _ PrizeSource = (*Toto)(nil)
