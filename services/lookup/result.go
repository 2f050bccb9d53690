package lookup

import (
	"encoding/json"
	"time"

	"sjsage522/psa10finder/internal/store"
	"sjsage522/psa10finder/pkg/errors"
)

// ScrapedAtLayout matches the store's timestamp text
const ScrapedAtLayout = "2006-01-02 15:04:05"

// Result is the outcome of one query. Success results carry the cached
// record; failures carry only the message and, for rendering failures, the
// captured page state.
type Result struct {
	Success       bool
	CardTitle     string
	LatestPrice   *float64
	ScrapedAt     time.Time
	URL           string
	PSA10Listings int

	Error     string
	DebugInfo *errors.DebugInfo

	// Cached is true when no scrape ran for this query
	Cached bool
}

type successJSON struct {
	Success       bool     `json:"success"`
	CardTitle     string   `json:"cardTitle"`
	LatestPrice   *float64 `json:"latestPrice"`
	ScrapedAt     string   `json:"scrapedAt"`
	URL           string   `json:"url"`
	PSA10Listings int      `json:"psa10Listings"`
}

type failureJSON struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	DebugInfo *errors.DebugInfo `json:"debug_info,omitempty"`
}

// MarshalJSON writes the success or failure shape
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureJSON{Error: r.Error, DebugInfo: r.DebugInfo})
	}
	return json.Marshal(successJSON{
		Success:       true,
		CardTitle:     r.CardTitle,
		LatestPrice:   r.LatestPrice,
		ScrapedAt:     r.ScrapedAt.UTC().Format(ScrapedAtLayout),
		URL:           r.URL,
		PSA10Listings: r.PSA10Listings,
	})
}

func fromRecord(rec store.PriceRecord, cached bool) Result {
	return Result{
		Success:       true,
		CardTitle:     rec.CardName,
		LatestPrice:   rec.Price,
		ScrapedAt:     rec.ScrapedAt,
		URL:           rec.URL,
		PSA10Listings: rec.ItemCount,
		Cached:        cached,
	}
}

// Failure builds a failed result with message
func Failure(message string) Result {
	return Result{Error: message}
}
