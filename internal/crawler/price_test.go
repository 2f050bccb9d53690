package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		matched bool
	}{
		{"US $71", 71, true},
		{"US$ 99", 99, true},
		{"$1,234", 1234, true},
		{"  $ 2,000,000 ", 2000000, true},
		{"¥15,000", 100, true},
		{"￥300", 2, true},
		{"¥225", 2, true},
		{"¥375", 2, true},
		{"$0", 0, true},
		{"¥50", 0, true},
		{"Ask", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			quote, ok := ParsePrice(tt.text)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, quote.AmountUSD)
			assert.Equal(t, tt.want > 0, quote.Valid())
		})
	}
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$71", FormatUSD(71))
	assert.Equal(t, "$1,234", FormatUSD(1234))
	assert.Equal(t, "$1,000,000", FormatUSD(1000000))
}
