package crawler

import (
	"context"
	"time"

	"sjsage522/psa10finder/helpers"
	"sjsage522/psa10finder/internal/dom"
)

// HTTPRenderer fetches pages without a browser. Marketplace pages that build
// their listings with JavaScript come back mostly empty, so this renderer is
// meant for tests and for mirrors that serve pre-rendered HTML.
type HTTPRenderer struct {
	BaseURL  string
	throttle *throttle
}

// NewHTTPRenderer creates a renderer that issues plain GET requests
func NewHTTPRenderer(baseURL string, navigationInterval time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		BaseURL:  baseURL,
		throttle: newThrottle(navigationInterval),
	}
}

// Name returns the renderer name
func (r *HTTPRenderer) Name() string {
	return "http"
}

// Open starts a session
func (r *HTTPRenderer) Open(ctx context.Context) (Session, error) {
	return &staticSession{baseURL: r.BaseURL, fetch: r.fetch}, nil
}

func (r *HTTPRenderer) fetch(ctx context.Context, url string, _ WaitSpec) (dom.Document, error) {
	if err := r.throttle.wait(ctx); err != nil {
		return nil, err
	}
	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		return nil, err
	}
	return dom.NewDocument(body, url)
}
