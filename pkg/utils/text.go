// Package utils provides shared helpers for logging, text trimming and error reporting.
package utils

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to at most maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

// Head returns the first maxLen runes of s without any marker.
func Head(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// CauseChain walks err through errors.Unwrap and returns at most depth messages,
// each truncated to maxLen runes. Joined errors contribute their first branch.
func CauseChain(err error, depth, maxLen int) []string {
	var chain []string
	for err != nil && len(chain) < depth {
		chain = append(chain, Truncate(err.Error(), maxLen))
		next := errors.Unwrap(err)
		if next == nil {
			if joined, ok := err.(interface{ Unwrap() []error }); ok {
				if errs := joined.Unwrap(); len(errs) > 0 {
					next = errs[0]
				}
			}
		}
		err = next
	}
	return chain
}

// FormatChain renders a cause chain on one line.
func FormatChain(chain []string) string {
	return strings.Join(chain, " <- ")
}
