package nlp

import (
	"strings"
	"unicode"
)

// CleanText lowercases, replaces every character outside [a-z0-9-] and
// whitespace with a space and collapses whitespace. CleanText(CleanText(s)) == CleanText(s).
func CleanText(text string) string {
	mapped := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}
