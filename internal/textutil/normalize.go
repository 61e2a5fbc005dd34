package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns text in Unicode NFC form with line endings unified,
// trailing whitespace stripped from every line, and runs of blank lines
// collapsed to one.
func NormalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var titleCaser = cases.Title(language.English)

// Label renders a snake_case or kebab-case identifier as a title-cased label,
// e.g. "subversion_of_expectations" becomes "Subversion Of Expectations".
func Label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return titleCaser.String(strings.Join(strings.Fields(value), " "))
}
