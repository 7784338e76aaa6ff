// Package textutil holds the text heuristics shared by the filter, the
// scraper, and the pipeline: whitespace normalization, ticker extraction,
// and URL extraction from forwarded messages.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tabExpr      = regexp.MustCompile(`\t`)
	spacesExpr   = regexp.MustCompile(` +`)
	newlinesExpr = regexp.MustCompile(`\n{3,}`)

	// Ticker patterns in priority order: middle-dot separated
	// ("Tether Gold·XAUT"), labeled ("심볼: XAUT" / "ticker: XAUT"),
	// and parenthesized ("(XAUT)").
	tickerDotExpr    = regexp.MustCompile(`[·•]([A-Z][A-Z0-9]{1,10})(?:[)\s,.]|$)`)
	tickerLabelExpr  = regexp.MustCompile(`(?i)(?:심볼|티커|symbol|ticker)\s*[:：]\s*([A-Z][A-Z0-9]{1,10})`)
	tickerParenExpr  = regexp.MustCompile(`\(([A-Z][A-Z0-9]{1,10})\)`)
	urlExpr          = regexp.MustCompile(`https?://\S+`)
)

// NormalizeWhitespace unifies line endings, collapses runs of spaces and
// blank lines, and trims the result.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = tabExpr.ReplaceAllString(text, " ")
	text = spacesExpr.ReplaceAllString(text, " ")
	text = newlinesExpr.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// StripWhitespace removes every whitespace rune. Exchange notices pad their
// key phrases inconsistently, so substring checks run on stripped text.
func StripWhitespace(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// ExtractTicker locates a short uppercase symbol token in announcement text.
// Returns "" when no pattern matches.
func ExtractTicker(text string) string {
	if m := tickerDotExpr.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := tickerLabelExpr.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := tickerParenExpr.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractURL returns the first http(s) URL in the text, or "".
func ExtractURL(text string) string {
	return urlExpr.FindString(text)
}
