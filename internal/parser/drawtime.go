package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// SourceLocation is the fixed home timezone of the results page (UTC+8).
var SourceLocation = time.FixedZone("SGT", 8*60*60)

var (
	commaSpacing  = regexp.MustCompile(`\s*,\s*`)
	meridiemSpace = regexp.MustCompile(`(?i)(\d)\s+(am|pm)\b`)
	dateOnly      = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3}\s+\d{4}`)

	drawLayouts = []string{
		"Mon, 2 Jan 2006, 3:04pm",
		"2 Jan 2006, 3:04pm",
	}
)

// DrawIdentity is the dedupe key for a draw: its date/time text with whitespace collapsed.
func DrawIdentity(drawText string) string {
	return collapseWhitespace(drawText)
}

// DrawTimeUTC converts draw text such as "Mon, 08 Jul 2024, 6.30pm" into a UTC instant.
// When only a date can be recovered it is returned as UTC midnight. ok is false when no
// date is present at all.
func DrawTimeUTC(drawText string) (time.Time, bool) {
	compact := collapseWhitespace(drawText)
	if compact == "" {
		return time.Time{}, false
	}

	canonical := strings.ToLower(compact)
	canonical = strings.ReplaceAll(canonical, ".", ":")
	canonical = commaSpacing.ReplaceAllString(canonical, ", ")
	canonical = meridiemSpace.ReplaceAllString(canonical, "${1}${2}")

	// Layout names match case-insensitively, but "pm" only accepts lower case.
	for _, layout := range drawLayouts {
		parsed, err := time.ParseInLocation(layout, canonical, SourceLocation)
		if err == nil {
			return parsed.UTC(), true
		}
	}

	date := dateOnly.FindString(compact)
	if date == "" {
		return time.Time{}, false
	}
	parsed, err := dateparse.ParseIn(date, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := parsed.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}
