package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/psa10finder/internal/dom"
	"sjsage522/psa10finder/logger"
)

// functionScript loads a page in the remote browser, waits for the ready
// selector (falling back to a fixed sleep) and scrolls to load lazy images
const functionScript = `module.exports = async ({ page, context }) => {
	await page.setViewport({ width: 1920, height: 1080 });
	await page.setUserAgent(context.userAgent);
	await page.evaluateOnNewDocument(context.stealth);

	const sleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));

	await page.goto(context.url, { waitUntil: 'domcontentloaded', timeout: 45000 });

	if (context.selector) {
		try {
			await page.waitForSelector(context.selector, { timeout: context.timeout });
		} catch (e) {
			await sleep(context.fallback);
		}
	} else {
		await sleep(context.fallback);
	}

	for (let i = 1; i <= context.scrollSteps; i++) {
		await page.evaluate((y) => window.scrollTo(0, y), i * context.stride);
		await sleep(context.scrollDelay);
	}
	if (context.scrollSteps > 0) {
		await page.evaluate(() => window.scrollTo(0, 0));
		await sleep(context.scrollDelay);
	}

	return {
		content: await page.content(),
		url: page.url(),
		title: await page.title(),
	};
}`

// BrowserlessRenderer renders pages through a remote browserless instance.
// Every navigation is a separate remote call, so sessions hold the last
// rendered HTML and expansion follows the control's href.
type BrowserlessRenderer struct {
	Addr     string
	BaseURL  string
	client   *http.Client
	throttle *throttle
	log      *logger.Logger
}

// NewBrowserlessRenderer creates a renderer for the browserless instance at addr
func NewBrowserlessRenderer(addr, baseURL string, navigationInterval time.Duration) *BrowserlessRenderer {
	return &BrowserlessRenderer{
		Addr:     strings.TrimRight(addr, "/"),
		BaseURL:  baseURL,
		client:   &http.Client{Timeout: 90 * time.Second},
		throttle: newThrottle(navigationInterval),
		log:      logger.ForCrawler("browserless"),
	}
}

// Name returns the renderer name
func (r *BrowserlessRenderer) Name() string {
	return "browserless"
}

// Open starts a session
func (r *BrowserlessRenderer) Open(ctx context.Context) (Session, error) {
	return &browserlessSession{
		staticSession: staticSession{baseURL: r.BaseURL, fetch: r.render},
		renderer:      r,
	}, nil
}

type browserlessSession struct {
	staticSession
	renderer *BrowserlessRenderer
}

// Snapshot adds a screenshot of the current URL to the captured HTML
func (s *browserlessSession) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.staticSession.Snapshot(ctx)
	if err != nil || snap.URL == "" {
		return snap, err
	}
	shot, err := s.renderer.screenshot(ctx, snap.URL)
	if err != nil {
		return snap, err
	}
	snap.Screenshot = shot
	return snap, nil
}

// render tries the /function endpoint first and falls back to /content
// with progressively weaker load conditions
func (r *BrowserlessRenderer) render(ctx context.Context, url string, wait WaitSpec) (dom.Document, error) {
	if err := r.throttle.wait(ctx); err != nil {
		return nil, err
	}

	strategies := []struct {
		name string
		fn   func(context.Context, string, WaitSpec) (string, string, error)
	}{
		{"function", r.renderWithFunction},
		{"content-networkidle2", r.contentStrategy("networkidle2")},
		{"content-load", r.contentStrategy("load")},
	}

	var lastErr error
	for _, strategy := range strategies {
		html, finalURL, err := strategy.fn(ctx, url, wait)
		if err == nil && isHTML(html) {
			r.log.Debug().
				Str("strategy", strategy.name).
				Int("bytes", len(html)).
				Msg("Page rendered")
			if finalURL == "" {
				finalURL = url
			}
			return dom.NewDocumentFromString(html, finalURL)
		}
		if err == nil {
			err = ErrEmptyPage
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn().Str("strategy", strategy.name).Err(err).Msg("Render strategy failed")
		lastErr = err
	}
	return nil, fmt.Errorf("all browserless strategies failed: %w", lastErr)
}

func (r *BrowserlessRenderer) renderWithFunction(ctx context.Context, url string, wait WaitSpec) (string, string, error) {
	payload := map[string]interface{}{
		"code": functionScript,
		"context": map[string]interface{}{
			"url":         url,
			"userAgent":   userAgent,
			"stealth":     stealthScript,
			"selector":    wait.Selector,
			"timeout":     wait.Timeout.Milliseconds(),
			"fallback":    wait.FallbackSleep.Milliseconds(),
			"scrollSteps": wait.ScrollSteps,
			"stride":      scrollStride(wait),
			"scrollDelay": wait.ScrollDelay.Milliseconds(),
		},
	}

	body, err := r.post(ctx, "/function", payload)
	if err != nil {
		return "", "", err
	}
	html, finalURL := decodeFunctionResponse(body)
	return html, finalURL, nil
}

func (r *BrowserlessRenderer) contentStrategy(waitUntil string) func(context.Context, string, WaitSpec) (string, string, error) {
	return func(ctx context.Context, url string, wait WaitSpec) (string, string, error) {
		payload := map[string]interface{}{
			"url": url,
			"gotoOptions": map[string]interface{}{
				"waitUntil": waitUntil,
				"timeout":   45000,
			},
		}
		if wait.Selector != "" {
			payload["waitForSelector"] = map[string]interface{}{
				"selector": wait.Selector,
				"timeout":  wait.Timeout.Milliseconds(),
			}
		}
		body, err := r.post(ctx, "/content", payload)
		if err != nil {
			return "", "", err
		}
		return string(body), url, nil
	}
}

func (r *BrowserlessRenderer) screenshot(ctx context.Context, url string) ([]byte, error) {
	payload := map[string]interface{}{
		"url": url,
		"options": map[string]interface{}{
			"fullPage": true,
			"type":     "png",
		},
	}
	return r.post(ctx, "/screenshot", payload)
}

func (r *BrowserlessRenderer) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Addr+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call browserless %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read browserless %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browserless %s returned status %d", path, resp.StatusCode)
	}
	return body, nil
}

// decodeFunctionResponse extracts the page HTML from the shapes browserless
// versions return: the bare object, an object under "data", or raw HTML
func decodeFunctionResponse(body []byte) (string, string) {
	content := string(body)
	if !strings.HasPrefix(strings.TrimSpace(content), "{") {
		return content, ""
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return content, ""
	}
	if data, ok := result["data"].(map[string]interface{}); ok {
		result = data
	}
	url, _ := result["url"].(string)
	for _, key := range []string{"content", "data", "result", "html"} {
		if html, ok := result[key].(string); ok && html != "" {
			return html, url
		}
	}
	return "", url
}

func isHTML(content string) bool {
	return strings.Contains(content, "<html") || strings.Contains(content, "<body")
}
