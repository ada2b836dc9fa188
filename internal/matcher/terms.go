// Package matcher finds candidate source documents for an article by lexical overlap
// of translated anchor snippets.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// minTermRunes is the shortest token kept as a key term.
const minTermRunes = 4

// KeyTerms splits translated on whitespace, strips trailing punctuation, lower-cases,
// and keeps distinct tokens longer than three characters in first-seen order.
func KeyTerms(translated string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(translated) {
		if utf8.RuneCountInString(tok) < minTermRunes {
			continue
		}
		tok = strings.TrimRightFunc(tok, unicode.IsPunct)
		tok = strings.ToLower(norm.NFC.String(tok))
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// MatchRatio returns the fraction of terms contained in text, and the terms found.
// text must already be prepared with PrepareText. Empty terms yield 0.
func MatchRatio(terms []string, text string) (float64, []string) {
	if len(terms) == 0 {
		return 0, nil
	}
	var matched []string
	for _, t := range terms {
		if strings.Contains(text, t) {
			matched = append(matched, t)
		}
	}
	return float64(len(matched)) / float64(len(terms)), matched
}

// PrepareText lower-cases and NFC-normalizes document text for MatchRatio.
func PrepareText(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}
