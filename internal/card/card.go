// Package card turns loosely formatted trading card identifiers into the
// search and matching terms used against the marketplace.
package card

import (
	"regexp"
	"strings"
)

// DefaultSetName is used when the caller does not know the set
const DefaultSetName = "Unknown"

// Identifier is a card as the caller describes it: a decorated name such as
// "GENGAR-HOLO", a catalog set label and a card number.
type Identifier struct {
	RawName    string `json:"card_name"`
	RawSet     string `json:"set_name"`
	CardNumber string `json:"card_number"`
}

// Query is everything the matcher needs, derived deterministically from an Identifier
type Query struct {
	SubjectTerm    string   `json:"subject_term"`
	MappedSet      string   `json:"mapped_set"`
	SetTokens      []string `json:"set_tokens"`
	NumberToken    string   `json:"number_token"`
	NormalizedName string   `json:"normalized_name"`
}

// generic words that say nothing about which set a card belongs to
var setStopwords = map[string]bool{
	"pokemon":  true,
	"japanese": true,
	"english":  true,
	"card":     true,
	"cards":    true,
	"tcg":      true,
	"the":      true,
	"neo":      true,
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// Fold collapses whitespace runs, trims and lowercases s
func Fold(s string) string {
	return strings.ToLower(CollapseSpace(s))
}

// CollapseSpace trims s and collapses inner whitespace runs to one space
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// NewQuery normalizes id into a Query
func NewQuery(id Identifier) Query {
	mapped := MapSetLabel(id.RawSet)
	return Query{
		SubjectTerm:    NormalizeSubject(id.RawName),
		MappedSet:      mapped,
		SetTokens:      SetTokens(id.RawSet, mapped),
		NumberToken:    strings.TrimSpace(id.CardNumber),
		NormalizedName: Fold(id.RawName),
	}
}

// SetTokens returns the distinguishing words of the given set labels in
// first-seen order, without stopwords and single characters
func SetTokens(labels ...string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, label := range labels {
		for _, token := range strings.Fields(Fold(label)) {
			if setStopwords[token] || len(token) <= 1 || seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}
