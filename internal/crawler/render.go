package crawler

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
)

// ExpansionControls are the "see more" links of a card page, in priority order
var ExpansionControls = []ExpansionControl{
	{Selector: `a[href*="/used?slide=right"]`},
	{Selector: `a.arrow`, TextContains: "See More"},
	{Selector: `a`, TextContains: "See More"},
}

// ErrEmptyPage is returned when a renderer produced no usable HTML
var ErrEmptyPage = errors.New("empty page content")

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// hides navigator.webdriver from the marketplace's bot checks
	stealthScript = `Object.defineProperty(navigator, "webdriver", {get: () => undefined})`

	defaultScrollStride = 800
)

// throttle spaces out navigations to the marketplace
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(interval time.Duration) *throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &throttle{limiter: rate.NewLimiter(limit, 1)}
}

func (t *throttle) wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func scrollStride(w WaitSpec) int {
	if w.ScrollStride > 0 {
		return w.ScrollStride
	}
	return defaultScrollStride
}

// findControl returns the first visible node matching one of the controls
func findControl(doc dom.Document, controls []ExpansionControl) (dom.Node, bool) {
	for _, control := range controls {
		for _, n := range doc.FindAll(control.Selector) {
			if n.Hidden() {
				continue
			}
			if control.TextContains != "" && !strings.Contains(card.Fold(n.Text()), card.Fold(control.TextContains)) {
				continue
			}
			return n, true
		}
	}
	return nil, false
}

// staticSession serves sessions that hold fetched HTML instead of a live
// page. Expanding follows the control's href.
type staticSession struct {
	baseURL string
	fetch   func(ctx context.Context, url string, wait WaitSpec) (dom.Document, error)
	current dom.Document
}

func (s *staticSession) Render(ctx context.Context, url string, wait WaitSpec) (dom.Document, error) {
	doc, err := s.fetch(ctx, url, wait)
	if err != nil {
		return nil, err
	}
	s.current = doc
	return doc, nil
}

func (s *staticSession) Document(ctx context.Context) (dom.Document, error) {
	if s.current == nil {
		return nil, ErrEmptyPage
	}
	return s.current, nil
}

func (s *staticSession) Expand(ctx context.Context, controls []ExpansionControl, wait WaitSpec) (bool, error) {
	if s.current == nil {
		return false, nil
	}
	control, ok := findControl(s.current, controls)
	if !ok {
		return false, nil
	}
	href, ok := control.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return false, nil
	}
	base := s.current.URL()
	if base == "" {
		base = s.baseURL
	}
	target, ok := ResolveURL(base, strings.TrimSpace(href))
	if !ok {
		return false, nil
	}
	if _, err := s.Render(ctx, target, wait); err != nil {
		return false, err
	}
	return true, nil
}

func (s *staticSession) TriggerScript(ctx context.Context, js string) error {
	return errors.ErrUnsupported
}

func (s *staticSession) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.current == nil {
		return Snapshot{}, nil
	}
	return Snapshot{
		Title: s.current.Title(),
		URL:   s.current.URL(),
		HTML:  s.current.HTML(),
	}, nil
}

func (s *staticSession) Close() error {
	s.current = nil
	return nil
}
