package crawler

import (
	"context"
	"time"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
)

// MatchTier identifies which candidate source produced a match
type MatchTier int

const (
	// TierImageAlt matches against image alt text on the search page
	TierImageAlt MatchTier = 1
	// TierItemName matches against the product name text nodes
	TierItemName MatchTier = 2
)

// Candidate is one node on the search result page that may describe the card
type Candidate struct {
	Node        dom.Node
	DisplayText string
}

// MatchResult describes the chosen search result. A zero score never leaves
// the matcher; "no match" is reported through the boolean return instead.
type MatchResult struct {
	Score         int       `json:"score"`
	SetMatched    bool      `json:"set_matched"`
	NumberMatched bool      `json:"number_matched"`
	NameMatched   bool      `json:"name_matched"`
	TargetURL     string    `json:"target_url"`
	Tier          MatchTier `json:"tier"`
}

// SaleItem is a single PSA 10 listing found on a card page
type SaleItem struct {
	IsSold   bool   `json:"is_sold"`
	PriceRaw string `json:"price_raw"`
}

// PriceQuote is a listing price converted to whole US dollars
type PriceQuote struct {
	AmountUSD int `json:"amount_usd"`
}

// PriceSummary holds every accepted price, ascending. CheapestUSD is AllUSD[0].
type PriceSummary struct {
	CheapestUSD int   `json:"cheapest_usd"`
	AllUSD      []int `json:"all_usd"`
	Count       int   `json:"count"`
}

// ScrapeResult is the packaged outcome of one pipeline run
type ScrapeResult struct {
	Price       int    `json:"price"`
	PriceStr    string `json:"price_str"`
	AllPrices   []int  `json:"all_prices"`
	Count       int    `json:"count"`
	URL         string `json:"url"`
	CardName    string `json:"card_name"`
	SubjectTerm string `json:"subject_term"`
	SetName     string `json:"set_name"`
	CardNumber  string `json:"card_number"`
	Expanded    bool   `json:"expanded"`
	RunID       string `json:"run_id"`
	ScrapedAt   string `json:"scraped_at"`
}

// WaitSpec bounds how long a render waits for content to appear
type WaitSpec struct {
	// Selector that signals the page is ready; empty skips the wait
	Selector string
	// Timeout for the selector wait
	Timeout time.Duration
	// FallbackSleep is slept once when the selector never appears
	FallbackSleep time.Duration
	// ScrollSteps scrolls the page this many times to trigger lazy loading
	ScrollSteps  int
	ScrollStride int
	ScrollDelay  time.Duration
}

// ExpansionControl locates a "see more" style link on a card page
type ExpansionControl struct {
	Selector     string
	TextContains string
}

// Snapshot is the diagnostic state of a session
type Snapshot struct {
	Title      string
	URL        string
	HTML       string
	Screenshot []byte
}

// Renderer opens rendering sessions against the marketplace
type Renderer interface {
	// Open starts a session; the caller must Close it
	Open(ctx context.Context) (Session, error)

	// Name returns the renderer's name for logging
	Name() string
}

// Session is one exclusively owned browsing context
type Session interface {
	// Render navigates to url and returns the document once wait is satisfied
	Render(ctx context.Context, url string, wait WaitSpec) (dom.Document, error)

	// Document returns the current page
	Document(ctx context.Context) (dom.Document, error)

	// Expand activates the first visible control, in priority order.
	// Finding no visible control is not an error.
	Expand(ctx context.Context, controls []ExpansionControl, wait WaitSpec) (bool, error)

	// TriggerScript runs JavaScript in the current page
	TriggerScript(ctx context.Context, js string) error

	// Snapshot captures the current page for diagnostics
	Snapshot(ctx context.Context) (Snapshot, error)

	// Close releases the session
	Close() error
}

// Crawler fetches the cheapest PSA 10 listing for a card
type Crawler interface {
	// FetchCheapest runs the full pipeline for one card
	FetchCheapest(ctx context.Context, id card.Identifier) (*ScrapeResult, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetProvider returns the marketplace name
	GetProvider() string
}
