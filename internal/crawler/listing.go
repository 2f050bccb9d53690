package crawler

import (
	"sort"
	"strings"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
)

// Selectors on card listing pages
const (
	SelectorGradeLabel = `p[class*="evaluation"]`
	SelectorSoldLabel  = `[class*="label-sold"]`
	SelectorPrice      = `p[class*="price"]`

	gradeLabelPSA10 = "PSA 10"

	// ancestor used when no item container can be recognized
	fallbackContainerDepth = 3
)

// ExtractCheapestGrade10 collects the prices of every unsold PSA 10 listing
// on the page. It reports false when no price could be recorded.
func ExtractCheapestGrade10(doc dom.Document) (PriceSummary, bool) {
	var prices []int
	for _, item := range CollectSaleItems(doc) {
		if item.IsSold || item.PriceRaw == "" {
			continue
		}
		quote, ok := ParsePrice(item.PriceRaw)
		if !ok || !quote.Valid() {
			continue
		}
		prices = append(prices, quote.AmountUSD)
	}

	if len(prices) == 0 {
		return PriceSummary{}, false
	}

	sort.Ints(prices)
	return PriceSummary{
		CheapestUSD: prices[0],
		AllUSD:      prices,
		Count:       len(prices),
	}, true
}

// CollectSaleItems returns one SaleItem per PSA 10 label whose listing
// container could be located. PriceRaw is the text of the first price node
// carrying a currency amount, or empty when there is none.
func CollectSaleItems(doc dom.Document) []SaleItem {
	var items []SaleItem
	for _, label := range doc.FindAll(SelectorGradeLabel) {
		if card.CollapseSpace(label.Text()) != gradeLabelPSA10 {
			continue
		}

		container, ok := listingContainer(label)
		if !ok {
			continue
		}

		if isSold(container) {
			items = append(items, SaleItem{IsSold: true})
			continue
		}

		items = append(items, SaleItem{PriceRaw: firstPriceText(container)})
	}
	return items
}

func listingContainer(label dom.Node) (dom.Node, bool) {
	if c, ok := label.NearestAncestor(isListingContainer); ok {
		return c, true
	}
	return label.Ancestor(fallbackContainerDepth)
}

func isListingContainer(n dom.Node) bool {
	return n.HasClassContaining("product__item") || n.HasClassContaining("item--") || n.Tag() == "li"
}

func isSold(container dom.Node) bool {
	if len(container.Find(SelectorSoldLabel)) > 0 {
		return true
	}
	html := container.OuterHTML()
	return strings.Contains(html, "label-sold") || strings.Contains(html, " SOLD ")
}

// The first node with a recognizable currency decides the listing price,
// even when its amount is later rejected.
func firstPriceText(container dom.Node) string {
	for _, n := range container.Find(SelectorPrice) {
		text := strings.TrimSpace(n.Text())
		if _, ok := ParsePrice(text); ok {
			return text
		}
	}
	return ""
}
