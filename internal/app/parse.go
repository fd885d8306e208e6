package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"jackpotwatch/internal/config"
	"jackpotwatch/internal/fetcher"
	"jackpotwatch/internal/parser"
)

const excerptLength = 300

// ParseOptions configure the parse command.
type ParseOptions struct {
	File string
	URL  string
}

// Parse fetches (or reads) the results page and prints each extraction step.
func (a *App) Parse(ctx context.Context, opts ParseOptions) error {
	page, source, err := a.loadPage(ctx, opts)
	if err != nil {
		fmt.Fprintf(a.Stdout, "[debug] Parse failed: %v\n", err)
		return err
	}

	snapshot, trace, err := parser.ParseWithTrace(page)

	writer := tabwriter.NewWriter(a.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "source\t%s\n", source)
	fmt.Fprintf(writer, "page bytes\t%d\n", len(page))
	fmt.Fprintf(writer, "normalized\t%s\n", excerpt(trace.NormalizedText))
	if trace.JackpotMatch.Text != "" {
		fmt.Fprintf(writer, "jackpot anchor\t@%d %q\n", trace.JackpotMatch.Anchor, trace.JackpotMatch.Text)
	}
	if trace.DrawMatch.Text != "" {
		fmt.Fprintf(writer, "draw anchor\t@%d %s\n", trace.DrawMatch.Anchor, excerpt(trace.DrawMatch.Text))
	}
	if err == nil {
		fmt.Fprintf(writer, "jackpot_estimate\t%s\n", snapshot.JackpotEstimate.String())
		fmt.Fprintf(writer, "draw_datetime_text\t%s\n", snapshot.DrawDateTimeText)
		fmt.Fprintf(writer, "draw_identity\t%s\n", snapshot.DrawIdentity)
		if drawTime, ok := parser.DrawTimeUTC(snapshot.DrawDateTimeText); ok {
			fmt.Fprintf(writer, "draw_time_utc\t%s\n", drawTime.Format(time.RFC3339))
		} else {
			fmt.Fprintln(writer, "draw_time_utc\t(unparseable)")
		}
	}
	writer.Flush()

	if err != nil {
		fmt.Fprintf(a.Stdout, "[debug] Parse failed: %v\n", err)
		return err
	}
	fmt.Fprintln(a.Stdout, "[debug] Parse succeeded")
	return nil
}

func (a *App) loadPage(ctx context.Context, opts ParseOptions) (string, string, error) {
	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return "", opts.File, fmt.Errorf("read page: %w", err)
		}
		return string(raw), opts.File, nil
	}

	source := config.PrizeSourceConfig{URL: opts.URL}
	cfg, err := config.Load(a.Settings.ConfigPath)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("config unavailable; using default prize source")
	} else {
		source = cfg.PrizeSource
		if opts.URL != "" {
			source.URL = opts.URL
		}
	}
	if source.URL == "" {
		source.URL = config.DefaultSourceURL
	}

	toto := fetcher.NewToto(fetcher.TotoOptions{
		URL:       source.URL,
		Timeout:   source.Timeout,
		UserAgent: source.UserAgent,
	}, a.Logger)
	page, err := toto.FetchPage(ctx)
	return page, source.URL, err
}

func excerpt(text string) string {
	cleaned := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(cleaned)
	if len(runes) <= excerptLength {
		return cleaned
	}
	return string(runes[:excerptLength]) + "..."
}
