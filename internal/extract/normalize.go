package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// hyphenBreak also matches a hyphen at the end of a PDF page, since pages are joined
// with a newline: a word split across two pages is rejoined like one split across lines.
var hyphenBreak = regexp.MustCompile(`-\r?\n`)

// Normalize joins words hyphenated across line ends, collapses every whitespace
// run to a single space and trims the result. Text is first put in NFC form so
// composed and decomposed accents compare equal downstream.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = hyphenBreak.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// IsLowText reports whether normalized text is too short for a document with pages.
func IsLowText(text string, pageCount, threshold int) bool {
	return pageCount >= 1 && utf8.RuneCountInString(text) < threshold
}
