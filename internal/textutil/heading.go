package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeading builds the lookup key for a heading: uppercase, every rune
// that is not a letter or digit replaced by a space, whitespace runs collapsed,
// ends trimmed. Uppercasing happens before filtering so that case mappings
// producing combining marks cannot survive into the key, which keeps the
// function idempotent.
func NormalizeHeading(text string) string {
	if text == "" {
		return ""
	}
	upper := cases.Upper(language.Und).String(norm.NFC.String(text))
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, upper)
	return strings.Join(strings.Fields(mapped), " ")
}

// NFC returns text in Unicode normalization form C.
func NFC(text string) string {
	if norm.NFC.IsNormalString(text) {
		return text
	}
	return norm.NFC.String(text)
}
