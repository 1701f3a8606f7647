// Package slug turns free text into file-name safe identifiers.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallback = "untitled"

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases input, folds accents to their base letters and joins the
// remaining alphanumeric runs with single dashes.
func Make(input string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), input)
	if err != nil {
		folded = input
	}
	s := nonAlphaNum.ReplaceAllString(strings.ToLower(strings.TrimSpace(folded)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}
