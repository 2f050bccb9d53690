package card

import "strings"

type setAlias struct {
	fragment string
	name     string
}

// PriceCharting-style catalog labels mapped to SNKRDUNK set names.
// First match wins; "expedition base set" is shadowed by "base set" the same
// way the catalog data has always been matched.
var setAliases = []setAlias{
	{"neo 4", "destiny"},
	{"neo 3", "revelation"},
	{"neo 2", "discovery"},
	{"neo 1", "genesis"},
	{"base set", "base"},
	{"legendary collection", "legendary"},
	{"expedition base set", "expedition"},
	{"aquapolis", "aquapolis"},
	{"skyridge", "skyridge"},
	{"fossil", "fossil"},
	{"jungle", "jungle"},
	{"team rocket", "rocket"},
	{"gym heroes", "heroes"},
	{"gym challenge", "challenge"},
}

// MapSetLabel maps a catalog set label to the marketplace's vocabulary,
// e.g. "Pokemon Japanese Neo 4" → "destiny". Unknown labels are returned unchanged.
func MapSetLabel(raw string) string {
	lower := strings.ToLower(raw)
	for _, alias := range setAliases {
		if strings.Contains(lower, alias.fragment) {
			return alias.name
		}
	}
	return raw
}
