package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	jackpotLookback     = 40
	jackpotAmountWindow = 400
	drawTextWindow      = 500
)

var (
	nextJackpotPattern = regexp.MustCompile(`(?i)next\s*jackpot`)
	jackpotPattern     = regexp.MustCompile(`(?i)jackpot`)
	nextDrawPattern    = regexp.MustCompile(`(?i)next\s*draw`)

	// Tried in order; the first one that matches inside the window wins.
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:S\$|\$)\s*\d[\d,]*(?:\.\d+)?`),
		regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?`),
	}

	currencyPrefix = regexp.MustCompile(`(?i)^(?:S\$|\$)\s*`)
	plainDecimal   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	drawStopPhrase = regexp.MustCompile(`(?i)\b(?:draw\s+results?|results?|jackpot)\b`)
)

// ExtractionError reports that a field could not be located in the page text.
type ExtractionError struct {
	Reason string
	Input  string
}

func (e *ExtractionError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: %q", e.Reason, e.Input)
	}
	return e.Reason
}

// Match records where an extracted field was found, for debugging output.
type Match struct {
	Anchor int
	Text   string
}

// FindJackpotAnchor returns the byte offset the jackpot amount search starts from.
func FindJackpotAnchor(text string) (int, error) {
	if loc := nextJackpotPattern.FindStringIndex(text); loc != nil {
		return loc[0], nil
	}

	for _, loc := range jackpotPattern.FindAllStringIndex(text, -1) {
		start := backWindowStart(text, loc[0], jackpotLookback)
		if strings.Contains(strings.ToLower(text[start:loc[0]]), "next") {
			return loc[0], nil
		}
	}

	return 0, &ExtractionError{Reason: "jackpot anchor not found"}
}

// ExtractJackpot locates the jackpot estimate in normalized text.
func ExtractJackpot(text string) (decimal.Decimal, Match, error) {
	anchor, err := FindJackpotAnchor(text)
	if err != nil {
		return decimal.Decimal{}, Match{}, err
	}

	window := forwardWindow(text, anchor, jackpotAmountWindow)
	for _, pattern := range amountPatterns {
		raw := pattern.FindString(window)
		if raw == "" {
			continue
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return decimal.Decimal{}, Match{}, err
		}
		return amount, Match{Anchor: anchor, Text: raw}, nil
	}

	return decimal.Decimal{}, Match{}, &ExtractionError{Reason: "jackpot amount not found near anchor"}
}

// ParseAmount converts a currency-like string such as "S$1,234,567.50" into a decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := currencyPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if !plainDecimal.MatchString(cleaned) {
		return decimal.Decimal{}, &ExtractionError{Reason: "unrecognized amount format", Input: raw}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, &ExtractionError{Reason: "unrecognized amount format", Input: raw}
	}
	return amount, nil
}

// ExtractDrawText returns the raw "next draw" date/time text following its label.
func ExtractDrawText(text string) (string, Match, error) {
	loc := nextDrawPattern.FindStringIndex(text)
	if loc == nil {
		return "", Match{}, &ExtractionError{Reason: "next draw anchor not found"}
	}

	window := forwardWindow(text, loc[0], drawTextWindow)
	rest := strings.TrimLeft(window[loc[1]-loc[0]:], " .:-")
	if stop := drawStopPhrase.FindStringIndex(rest); stop != nil {
		rest = rest[:stop[0]]
	}

	drawText := collapseWhitespace(rest)
	if strings.Trim(drawText, " .:-,") == "" {
		return "", Match{}, &ExtractionError{Reason: "empty draw text"}
	}
	return drawText, Match{Anchor: loc[0], Text: window}, nil
}

// forwardWindow slices up to size runes from the byte offset start.
func forwardWindow(text string, start, size int) string {
	end := start
	for n := 0; n < size && end < len(text); n++ {
		_, width := utf8.DecodeRuneInString(text[end:])
		end += width
	}
	return text[start:end]
}

// backWindowStart returns the byte offset size runes before end.
func backWindowStart(text string, end, size int) int {
	start := end
	for n := 0; n < size && start > 0; n++ {
		_, width := utf8.DecodeLastRuneInString(text[:start])
		start -= width
	}
	return start
}
