package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

var accentFolds = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a', 'â': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e', 'ê': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i', 'î': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o', 'ô': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u', 'û': 'u',
	'ñ': 'n', 'ç': 'c',
}

// FoldAccents lowercases and strips the Spanish diacritics that make the
// same title compare unequal across source sites and catalog slugs.
func FoldAccents(s string) string {
	var out strings.Builder
	for _, c := range strings.ToLower(s) {
		if folded, ok := accentFolds[c]; ok {
			out.WriteRune(folded)
			continue
		}
		out.WriteRune(c)
	}
	return out.String()
}

// IsUpper reports whether s has at least one letter and no lowercase
// letters, the shape of shouting titles on ticketing sites.
func IsUpper(s string) bool {
	hasLetter := false
	for _, c := range s {
		if !unicode.IsLetter(c) {
			continue
		}
		hasLetter = true
		if unicode.IsLower(c) {
			return false
		}
	}
	return hasLetter
}

// TitleCase rewrites an ALL-CAPS string so each run of letters starts
// upper and continues lower. "EL AGENTE SECRETO" becomes
// "El Agente Secreto".
func TitleCase(s string) string {
	var out strings.Builder
	prevLetter := false
	for _, c := range s {
		switch {
		case !unicode.IsLetter(c):
			out.WriteRune(c)
			prevLetter = false
		case prevLetter:
			out.WriteRune(unicode.ToLower(c))
		default:
			out.WriteRune(unicode.ToUpper(c))
			prevLetter = true
		}
	}
	return out.String()
}

// Slugify renders a title the way catalog sites render URL slugs:
// accent-folded, non-alphanumerics collapsed to single dashes.
func Slugify(s string) string {
	s = FoldAccents(s)
	var out strings.Builder
	lastDash := true
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			out.WriteRune(c)
			lastDash = false
			continue
		}
		if !lastDash {
			out.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(out.String(), "-")
}
