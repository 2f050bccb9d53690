package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"sjsage522/psa10finder/helpers"
	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/pkg/errors"
	"sjsage522/psa10finder/services/cache"
)

const (
	// ProviderSnkrdunk names the marketplace in errors and logs
	ProviderSnkrdunk = "snkrdunk"

	// RenderBlockKey is set in the cache after a rendering failure
	RenderBlockKey = "snkrdunk_render_blocked"

	debugSnippetLength = 200

	defaultCaptureTimeout = 5 * time.Second
)

// Options tunes the pacing of a scrape
type Options struct {
	BaseURL string

	// search page
	WaitTimeout   time.Duration
	FallbackSleep time.Duration
	ScrollSteps   int
	ScrollDelay   time.Duration

	// card page before and after expanding the listings
	PageSettle   time.Duration
	ExpandSettle time.Duration

	// listing page before extraction
	ListingScrollSteps int
	ListingScrollDelay time.Duration

	// render back-off after a failure
	BlockTime time.Duration

	// page capture for debug info and diagnostics
	CaptureTimeout time.Duration
}

// DefaultOptions returns the pacing used against the live marketplace
func DefaultOptions() Options {
	return Options{
		BaseURL:            "https://snkrdunk.com",
		WaitTimeout:        10 * time.Second,
		FallbackSleep:      3 * time.Second,
		ScrollSteps:        5,
		ScrollDelay:        time.Second,
		PageSettle:         3 * time.Second,
		ExpandSettle:       4 * time.Second,
		ListingScrollSteps: 6,
		ListingScrollDelay: 800 * time.Millisecond,
		BlockTime:          5 * time.Minute,
		CaptureTimeout:     defaultCaptureTimeout,
	}
}

// SnkrdunkCrawler finds the cheapest unsold PSA 10 listing of a card on SNKRDUNK
type SnkrdunkCrawler struct {
	BaseCrawler
	renderer    Renderer
	diagnostics *helpers.Diagnostics
	opts        Options
	log         *logger.Logger
}

// NewSnkrdunkCrawler creates the crawler. cacheSvc and diagnostics may be nil.
func NewSnkrdunkCrawler(renderer Renderer, cacheSvc cache.CacheService, diagnostics *helpers.Diagnostics, opts Options) *SnkrdunkCrawler {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = defaultCaptureTimeout
	}
	return &SnkrdunkCrawler{
		BaseCrawler: BaseCrawler{
			Provider:  ProviderSnkrdunk,
			CacheKey:  RenderBlockKey,
			CacheSvc:  cacheSvc,
			BlockTime: opts.BlockTime,
		},
		renderer:    renderer,
		diagnostics: diagnostics,
		opts:        opts,
		log:         logger.ForCrawler(ProviderSnkrdunk),
	}
}

// SearchURL returns the search result page for a subject term
func (c *SnkrdunkCrawler) SearchURL(subject string) string {
	return c.opts.BaseURL + "/en/search/result?keyword=" + url.QueryEscape(subject)
}

// FetchCheapest searches for the card, opens the best match, expands its
// listings and returns the cheapest unsold PSA 10 price.
// A card that cannot be matched or has no priced listing yields a not-found error.
func (c *SnkrdunkCrawler) FetchCheapest(ctx context.Context, id card.Identifier) (*ScrapeResult, error) {
	runID := uuid.NewString()
	log := c.log.WithFields(logger.Fields{"run_id": runID, "card_name": id.RawName})

	q := card.NewQuery(id)
	if q.SubjectTerm == "" {
		return nil, errors.NewValidation(c.Provider, fmt.Sprintf("card name %q has no searchable subject", id.RawName))
	}
	if err := c.checkBlocked(); err != nil {
		return nil, err
	}

	log.Info().
		Str("subject", q.SubjectTerm).
		Str("mapped_set", q.MappedSet).
		Strs("set_tokens", q.SetTokens).
		Str("number", q.NumberToken).
		Str("renderer", c.renderer.Name()).
		Msg("Starting scrape")

	session, err := c.renderer.Open(ctx)
	if err != nil {
		return nil, c.renderingFailure(ctx, nil, "failed to open rendering session", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close rendering session")
		}
	}()

	searchURL := c.SearchURL(q.SubjectTerm)
	doc, err := session.Render(ctx, searchURL, c.searchWait())
	if err != nil {
		return nil, c.renderingFailure(ctx, session, "failed to render search results", err)
	}

	match, ok := SelectBestMatch(doc, q, c.opts.BaseURL)
	if !ok {
		log.Info().
			Int("item_names", len(doc.FindAll(SelectorItemName))).
			Str("search_url", searchURL).
			Msg("No search result matches the card")
		return nil, errors.NewNotFound(c.Provider, fmt.Sprintf("no search result matches %q", id.RawName))
	}
	log.Debug().
		Int("score", match.Score).
		Int("tier", int(match.Tier)).
		Bool("set", match.SetMatched).
		Bool("number", match.NumberMatched).
		Bool("name", match.NameMatched).
		Str("url", match.TargetURL).
		Msg("Matched search result")

	if _, err := session.Render(ctx, match.TargetURL, WaitSpec{FallbackSleep: c.opts.PageSettle}); err != nil {
		return nil, c.renderingFailure(ctx, session, "failed to render card page", err)
	}

	expanded, err := session.Expand(ctx, ExpansionControls, WaitSpec{FallbackSleep: c.opts.ExpandSettle})
	if err != nil {
		return nil, c.renderingFailure(ctx, session, "failed to expand listings", err)
	}
	if !expanded {
		log.Debug().Msg("No visible see-more control, extracting from the card page")
	}

	if err := c.scrollListings(ctx, session); err != nil {
		return nil, c.renderingFailure(ctx, session, "failed to scroll listings", err)
	}

	doc, err = session.Document(ctx)
	if err != nil {
		return nil, c.renderingFailure(ctx, session, "failed to read listing page", err)
	}

	summary, ok := ExtractCheapestGrade10(doc)
	if !ok {
		c.dumpDiagnostics(ctx, session, doc, log)
		return nil, errors.NewNotFound(c.Provider, fmt.Sprintf("no unsold PSA 10 listing for %q", id.RawName))
	}

	finalURL := doc.URL()
	if finalURL == "" {
		finalURL = match.TargetURL
	}

	log.Info().
		Int("price", summary.CheapestUSD).
		Int("count", summary.Count).
		Bool("expanded", expanded).
		Str("url", finalURL).
		Msg("Scrape finished")

	return &ScrapeResult{
		Price:       summary.CheapestUSD,
		PriceStr:    FormatUSD(summary.CheapestUSD),
		AllPrices:   summary.AllUSD,
		Count:       summary.Count,
		URL:         finalURL,
		CardName:    id.RawName,
		SubjectTerm: q.SubjectTerm,
		SetName:     id.RawSet,
		CardNumber:  id.CardNumber,
		Expanded:    expanded,
		RunID:       runID,
		ScrapedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (c *SnkrdunkCrawler) searchWait() WaitSpec {
	return WaitSpec{
		Selector:      SelectorItemName,
		Timeout:       c.opts.WaitTimeout,
		FallbackSleep: c.opts.FallbackSleep,
		ScrollSteps:   c.opts.ScrollSteps,
		ScrollStride:  800,
		ScrollDelay:   c.opts.ScrollDelay,
	}
}

// scrollListings scrolls the listing page so lazy-loaded items are present.
// Sessions without script support are left as they are.
func (c *SnkrdunkCrawler) scrollListings(ctx context.Context, session Session) error {
	for i := 1; i <= c.opts.ListingScrollSteps; i++ {
		err := session.TriggerScript(ctx, fmt.Sprintf("window.scrollTo(0, %d)", i*900))
		if stderrors.Is(err, stderrors.ErrUnsupported) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sleep(ctx, c.opts.ListingScrollDelay); err != nil {
			return err
		}
	}
	if c.opts.ListingScrollSteps <= 0 {
		return nil
	}
	if err := session.TriggerScript(ctx, "window.scrollTo(0, 0)"); err != nil {
		return err
	}
	return sleep(ctx, c.opts.ListingScrollDelay)
}

// captureContext outlives a canceled ctx but never waits longer than CaptureTimeout
func (c *SnkrdunkCrawler) captureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.CaptureTimeout)
}

// renderingFailure captures what the page looked like, sets the render
// block and wraps err once
func (c *SnkrdunkCrawler) renderingFailure(ctx context.Context, session Session, message string, err error) error {
	var debug *errors.DebugInfo
	if session != nil {
		captureCtx, cancel := c.captureContext(ctx)
		doc, docErr := session.Document(captureCtx)
		cancel()
		if docErr == nil {
			debug = &errors.DebugInfo{
				Title:         doc.Title(),
				SourceSnippet: snippet(doc.HTML(), debugSnippetLength),
			}
		}
	}

	if ctx.Err() == nil {
		if blockErr := c.block(); blockErr != nil {
			c.log.Warn().Err(blockErr).Msg("Failed to set render block")
		}
	}

	if c.diagnostics != nil {
		if logErr := c.diagnostics.LogError(c.GetName(), err); logErr != nil {
			c.log.Warn().Err(logErr).Msg("Failed to write error log")
		}
	}

	c.log.Error().Err(err).Str("stage", message).Msg("Rendering failed")
	return errors.NewRendering(c.Provider, message, err, debug)
}

func (c *SnkrdunkCrawler) dumpDiagnostics(ctx context.Context, session Session, doc dom.Document, log *logger.Logger) {
	if c.diagnostics == nil {
		return
	}
	captureCtx, cancel := c.captureContext(ctx)
	defer cancel()
	snap, err := session.Snapshot(captureCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to capture page snapshot")
	}
	html := snap.HTML
	if html == "" {
		html = doc.HTML()
	}
	if err := c.diagnostics.Dump(snap.Screenshot, html); err != nil {
		log.Warn().Err(err).Msg("Failed to write diagnostics")
		return
	}
	log.Info().
		Int("sale_items", len(CollectSaleItems(doc))).
		Str("html", c.diagnostics.HTMLPath()).
		Msg("No PSA 10 price found, page saved for inspection")
}

// snippet returns at most n bytes of s without splitting a rune
func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
