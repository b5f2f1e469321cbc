// Package sanitize normalizes raw user text before it is sent upstream.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLen is the maximum length of sanitized text in runes.
const MaxLen = 1000

var (
	// Everything outside word characters, whitespace and basic punctuation
	// is stripped.
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-]`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Clean strips disallowed characters, collapses whitespace runs to a single
// space, trims the edges, and truncates the result to MaxLen runes. It is
// pure and idempotent; empty input yields empty output.
func Clean(raw string) string {
	s := disallowed.ReplaceAllString(raw, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > MaxLen {
		s = strings.TrimRight(string(runes[:MaxLen]), " ")
	}
	return s
}
