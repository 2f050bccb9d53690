package crawler

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// YenPerDollar is the fixed conversion rate for yen-denominated listings
const YenPerDollar = 150

var (
	usPricePattern     = regexp.MustCompile(`US\s*\$\s*([\d,]+)`)
	dollarPricePattern = regexp.MustCompile(`\$\s*([\d,]+)`)
	yenPricePattern    = regexp.MustCompile(`[¥￥]\s*([\d,]+)`)
)

// ParsePrice converts listing price text to whole dollars.
//
//	"US $71"  → 71
//	"$1,234"  → 1234
//	"¥15,000" → 100
//
// The second return value reports whether a currency pattern matched at all;
// a matched but non-positive amount yields (PriceQuote{}, true) with a zero amount.
func ParsePrice(text string) (PriceQuote, bool) {
	text = strings.TrimSpace(text)

	if m := usPricePattern.FindStringSubmatch(text); m != nil {
		return PriceQuote{AmountUSD: parseAmount(m[1])}, true
	}
	if m := dollarPricePattern.FindStringSubmatch(text); m != nil {
		return PriceQuote{AmountUSD: parseAmount(m[1])}, true
	}
	if m := yenPricePattern.FindStringSubmatch(text); m != nil {
		yen := parseAmount(m[1])
		return PriceQuote{AmountUSD: int(math.RoundToEven(float64(yen) / YenPerDollar))}, true
	}
	return PriceQuote{}, false
}

// Valid reports whether the quote can be recorded
func (q PriceQuote) Valid() bool {
	return q.AmountUSD > 0
}

func parseAmount(digits string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(digits, ",", ""))
	if err != nil {
		// a run of commas or an overflowing number
		return 0
	}
	return n
}

// FormatUSD renders whole dollars as "$1,234"
func FormatUSD(amount int) string {
	return message.NewPrinter(language.English).Sprintf("$%d", amount)
}
