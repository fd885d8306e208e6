package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NormalizeText strips markup and collapses the visible text of a page into a
// single space-separated line. Text order follows document order.
func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	chunks := make([]string, 0, 64)
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(strings.Join(chunks, " "))
		case html.StartTagToken:
			if isInvisible(tokenizer.Token().DataAtom) {
				skipDepth++
			}
		case html.EndTagToken:
			if isInvisible(tokenizer.Token().DataAtom) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if data := tokenizer.Token().Data; data != "" {
				chunks = append(chunks, data)
			}
		}
	}
}

func isInvisible(a atom.Atom) bool {
	return a == atom.Script || a == atom.Style
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
