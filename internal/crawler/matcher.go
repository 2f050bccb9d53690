package crawler

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
)

const (
	setScore    = 3
	numberScore = 2
	nameScore   = 1
)

// SelectorItemName marks product names on search result pages
const SelectorItemName = ".product__item-name"

// "094/111" style numbers printed in image alt text
var fractionPattern = regexp.MustCompile(`(\d{2,3})/\d{2,3}`)

type scoredCandidate struct {
	Candidate
	result MatchResult
}

// SelectBestMatch picks the search result that best matches q. Image alt text
// is tried first; product name nodes are only consulted when no image yields
// a usable match. Relative links are resolved against baseURL.
func SelectBestMatch(doc dom.Document, q card.Query, baseURL string) (MatchResult, bool) {
	if q.SubjectTerm == "" {
		return MatchResult{}, false
	}

	if m, ok := selectFromTier(imageCandidates(doc), q, baseURL, TierImageAlt); ok {
		return m, true
	}
	return selectFromTier(itemNameCandidates(doc), q, baseURL, TierItemName)
}

func imageCandidates(doc dom.Document) []Candidate {
	var candidates []Candidate
	for _, img := range doc.FindAll("img") {
		alt, ok := img.Attr("alt")
		if !ok || alt == "" {
			continue
		}
		candidates = append(candidates, Candidate{Node: img, DisplayText: alt})
	}
	return candidates
}

func itemNameCandidates(doc dom.Document) []Candidate {
	var candidates []Candidate
	for _, n := range doc.FindAll(SelectorItemName) {
		candidates = append(candidates, Candidate{Node: n, DisplayText: n.Text()})
	}
	return candidates
}

func selectFromTier(candidates []Candidate, q card.Query, baseURL string, tier MatchTier) (MatchResult, bool) {
	var scored []scoredCandidate
	for _, c := range candidates {
		result, ok := Score(c.DisplayText, q, tier)
		if !ok || result.Score == 0 {
			continue
		}
		scored = append(scored, scoredCandidate{Candidate: c, result: result})
	}

	// ties keep document order
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].result.Score > scored[j].result.Score
	})

	for _, s := range scored {
		target, ok := resolveLink(s.Node, baseURL)
		if !ok {
			continue
		}
		s.result.TargetURL = target
		return s.result, true
	}
	return MatchResult{}, false
}

// Score applies the matching rule to one candidate text. The boolean is false
// when the text does not mention the subject at all.
func Score(displayText string, q card.Query, tier MatchTier) (MatchResult, bool) {
	text := card.Fold(displayText)
	subject := card.Fold(q.SubjectTerm)
	if subject == "" || !strings.Contains(text, subject) {
		return MatchResult{}, false
	}

	result := MatchResult{Tier: tier}
	for _, token := range q.SetTokens {
		if strings.Contains(text, token) {
			result.SetMatched = true
			break
		}
	}
	result.NumberMatched = numberMatches(displayText, text, q.NumberToken, tier)
	result.NameMatched = q.NormalizedName != "" && strings.Contains(text, q.NormalizedName)

	if result.SetMatched {
		result.Score += setScore
	}
	if result.NumberMatched {
		result.Score += numberScore
	}
	if result.NameMatched {
		result.Score += nameScore
	}
	return result, true
}

func numberMatches(raw, folded, number string, tier MatchTier) bool {
	if number == "" {
		return false
	}
	if tier == TierImageAlt {
		for _, m := range fractionPattern.FindAllStringSubmatch(raw, -1) {
			numerator := m[1]
			if strings.Contains(numerator, number) || strings.Contains(number, numerator) {
				return true
			}
		}
	}
	return strings.Contains(folded, strings.ToLower(number))
}

func resolveLink(n dom.Node, baseURL string) (string, bool) {
	link, ok := n.NearestAncestor(func(a dom.Node) bool {
		if a.Tag() != "a" {
			return false
		}
		href, has := a.Attr("href")
		return has && strings.TrimSpace(href) != ""
	})
	if !ok {
		return "", false
	}
	href, _ := link.Attr("href")
	return ResolveURL(baseURL, strings.TrimSpace(href))
}

// ResolveURL makes href absolute against baseURL
func ResolveURL(baseURL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return ref.String(), true
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
