package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented letters and drops the combining marks, so
// "Café" and "Cafe" produce the same token.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeToken converts a category, template directory or cache key into a
// lowercase ASCII token of letters, digits, '-' and '_'. Runs of other
// characters collapse to one underscore. Empty results become "unknown".
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if folded, _, err := transform.String(stripMarks, value); err == nil {
		value = folded
	}
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
			gap = false
		case !gap:
			b.WriteByte('_')
			gap = true
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// Truncate shortens value to at most limit runes, appending "..." when cut.
func Truncate(value string, limit int) string {
	chars := []rune(strings.TrimSpace(value))
	if limit <= 0 || len(chars) <= limit {
		return string(chars)
	}
	return string(chars[:limit]) + "..."
}
