package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, so "é"
// normalizes to "e".
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize prepares a free-text answer for comparison: trim, collapse
// internal whitespace to single spaces, strip diacritics, and fold case
// unless the question is case-sensitive.
func Normalize(s string, caseSensitive bool) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}
