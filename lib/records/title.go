package records

import (
	"regexp"
	"strings"
)

// version suffixes seen across sites: "(VOSE)", "(vose)", "(V.O.S.E.)",
// "F1 - VOSE", "(DOBLADA AL ESPAÑOL)"
var versionSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\((?:VOSE|V\.O\.S\.E\.)\)\s*$`),
	regexp.MustCompile(`(?i)\s*-\s*VOSE\s*$`),
	regexp.MustCompile(`(?i)\s*\(DOBLADA AL ESPAÑOL\)\s*$`),
}

var titleWhitespace = regexp.MustCompile(`\s+`)

// CleanTitle strips version-indicator suffixes and the first matching
// special-session prefix. Prefixes are venue-specific fixed phrases, matched
// exactly. An empty result means the entry was not a film title at all and
// the caller should drop the record.
func CleanTitle(title string, prefixes ...string) string {
	for _, re := range versionSuffixes {
		title = re.ReplaceAllString(title, "")
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(title, prefix) {
			title = title[len(prefix):]
			break
		}
	}

	title = titleWhitespace.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}
