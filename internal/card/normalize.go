package card

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Prefixes are stripped once each, in this order.
var prefixPatterns = compileAll(
	`^fa[/\-\s]+`,
	`^full\s*art[/\-\s]+`,
	`^morty's\s+`,
	`^misty's\s+`,
	`^brock's\s+`,
	`^erika's\s+`,
	`^lt\.?\s*surge's\s+`,
	`^sabrina's\s+`,
	`^blaine's\s+`,
	`^giovanni's\s+`,
	`^koga's\s+`,
	`^rocket's\s+`,
	`^dark\s+`,
	`^light\s+`,
	`^shining\s+`,
	`^radiant\s+`,
)

// Suffixes are applied as a full pass, repeated until a pass changes nothing.
// Specific patterns must come before the shorter ones they contain
// ("reverse holo" before "holo", "vmax" before "v").
var suffixPatterns = compileAll(
	`[\-\s]+reverse[\-\s]*holo$`,
	`[\-\s]+holofoil$`,
	`[\-\s]+holo$`,
	`[\-\s]+non[\-\s]*holo$`,
	`[\-\s]+vmax$`,
	`[\-\s]+vstar$`,
	`[\-\s]+v$`,
	`[\-\s]+ex$`,
	`[\-\s]+gx$`,
	`[\-\s]+mega$`,
	`[\-\s]+break$`,
	`[\-\s]+prime$`,
	`[\-\s]+legend$`,
	`[\-\s]+lv[\-\.]?x$`,
	`[\-\s]+star$`,
	`[\-\s]+full[\-\s]*art$`,
	`[\-\s]+secret$`,
	`[\-\s]+rainbow$`,
	`[\-\s]+gold$`,
	`[\-\s]+shiny$`,
	`[\-\s]+promo$`,
	`[\-\s]+prerelease$`,
	`[\-\s]+staff$`,
	`[\-\s]+stamped$`,
	`[\-\s]+radiant$`,
	`[\-\s]+shining$`,
	`[\-\s]+dark$`,
	`[\-\s]+light$`,
	`[\-\s]+delta[\-\s]*species$`,
	`[\-\s]+sp$`,
	`[\-\s]+gl$`,
	`[\-\s]+fb$`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return compiled
}

// PrefixPatterns returns the prefix patterns in priority order
func PrefixPatterns() []string {
	return patternStrings(prefixPatterns)
}

// SuffixPatterns returns the suffix patterns in priority order
func SuffixPatterns() []string {
	return patternStrings(suffixPatterns)
}

func patternStrings(patterns []*regexp.Regexp) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.TrimPrefix(p.String(), `(?i)`)
	}
	return out
}

// NormalizeSubject extracts the bare character name used as the search keyword.
//
//	"GENGAR-HOLO"          → "Gengar"
//	"FA/Gengar VMAX"       → "Gengar"
//	"Sylveon-Holo-EX"      → "Sylveon"
//	"Gengar #94-Holo"      → "Gengar"
//	"Pikachu Reverse Holo" → "Pikachu"
func NormalizeSubject(raw string) string {
	name := strings.ToLower(raw)

	// legacy clients append the card number as "#94"
	if i := strings.IndexByte(name, '#'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)

	for _, p := range prefixPatterns {
		name = p.ReplaceAllString(name, "")
	}

	for {
		prev := name
		for _, p := range suffixPatterns {
			name = p.ReplaceAllString(name, "")
		}
		if name == prev {
			break
		}
	}

	name = strings.Trim(name, " -/")
	name = whitespacePattern.ReplaceAllString(name, " ")
	if name == "" {
		return ""
	}
	// cases.Caser is stateful, so one per call
	return cases.Title(language.English).String(name)
}
