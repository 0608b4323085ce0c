package runner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var noTimePattern = regexp.MustCompile(`(?i)\bno\s+time\b`)

// Clean trims a runner name, collapses whitespace and strips the "no time"
// marker the storefront appends to orders without a known finish time.
// It returns false when nothing usable remains.
func Clean(name string) (string, bool) {
	cleaned := collapse(name)

	// Removal can splice a new marker together ("no no time time")
	for noTimePattern.MatchString(cleaned) {
		cleaned = collapse(noTimePattern.ReplaceAllString(cleaned, " "))
	}

	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the comparison form of a name: case-folded, diacritics removed,
// apostrophes dropped and other punctuation turned into spaces. Key does not
// strip noise; callers clean first.
func Key(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		stripped = name
	}

	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// O'Brien and OBrien compare equal
		default:
			b.WriteRune(' ')
		}
	}

	return collapse(b.String())
}

func tokens(key string) []string {
	return strings.Fields(key)
}
