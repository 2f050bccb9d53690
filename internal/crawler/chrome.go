package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/dom"
	"sjsage522/psa10finder/logger"
)

// DefaultNavigationTimeout matches the page load timeout browserless is given
const DefaultNavigationTimeout = 45 * time.Second

// RodRenderer drives a local Chrome through the DevTools protocol
type RodRenderer struct {
	ChromeBin string
	Headless  bool
	ProxyURL  string
	// NavigationTimeout bounds each navigation, load wait and page read
	NavigationTimeout time.Duration
	throttle          *throttle
	log               *logger.Logger
}

// NewRodRenderer creates a renderer that launches a fresh browser per session
func NewRodRenderer(chromeBin string, headless bool, proxyURL string, navigationInterval, navigationTimeout time.Duration) *RodRenderer {
	if navigationTimeout <= 0 {
		navigationTimeout = DefaultNavigationTimeout
	}
	return &RodRenderer{
		ChromeBin:         chromeBin,
		Headless:          headless,
		ProxyURL:          proxyURL,
		NavigationTimeout: navigationTimeout,
		throttle:          newThrottle(navigationInterval),
		log:               logger.ForCrawler("rod"),
	}
}

// Name returns the renderer name
func (r *RodRenderer) Name() string {
	return "rod"
}

// Open launches Chrome and opens a blank page
func (r *RodRenderer) Open(ctx context.Context) (Session, error) {
	l := launcher.New().
		Headless(r.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("window-size", "1920,1080").
		Set("disable-blink-features", "AutomationControlled")
	if r.ChromeBin != "" {
		l = l.Bin(r.ChromeBin)
	}
	if r.ProxyURL != "" {
		l = l.Proxy(r.ProxyURL)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}
	r.log.Debug().Str("control_url", controlURL).Msg("Chrome launched")

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	session := &rodSession{
		launcher: l,
		browser:  browser,
		throttle: r.throttle,
		timeout:  r.NavigationTimeout,
		log:      r.log,
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to install stealth script: %w", err)
	}
	session.page = page

	return session, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	throttle *throttle
	timeout  time.Duration
	log      *logger.Logger
}

// bounded returns the page bound to ctx with the per-operation timeout.
// Callers release the timer with CancelTimeout.
func (s *rodSession) bounded(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.timeout)
}

func (s *rodSession) Render(ctx context.Context, url string, wait WaitSpec) (dom.Document, error) {
	if err := s.throttle.wait(ctx); err != nil {
		return nil, err
	}

	page := s.bounded(ctx)
	defer page.CancelTimeout()
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	if err := s.settle(ctx, wait); err != nil {
		return nil, err
	}
	return s.Document(ctx)
}

// settle waits for the ready selector, falling back to a fixed sleep, then
// scrolls to trigger lazy-loaded images
func (s *rodSession) settle(ctx context.Context, wait WaitSpec) error {
	if wait.Selector == "" {
		if err := sleep(ctx, wait.FallbackSleep); err != nil {
			return err
		}
	} else if _, err := s.page.Context(ctx).Timeout(wait.Timeout).Element(wait.Selector); err != nil {
		s.log.Debug().Str("selector", wait.Selector).Err(err).Msg("Ready selector not found, sleeping")
		if err := sleep(ctx, wait.FallbackSleep); err != nil {
			return err
		}
	}

	if wait.ScrollSteps <= 0 {
		return nil
	}
	stride := scrollStride(wait)
	for i := 1; i <= wait.ScrollSteps; i++ {
		if err := s.scrollTo(ctx, i*stride); err != nil {
			return err
		}
		if err := sleep(ctx, wait.ScrollDelay); err != nil {
			return err
		}
	}
	if err := s.scrollTo(ctx, 0); err != nil {
		return err
	}
	return sleep(ctx, wait.ScrollDelay)
}

func (s *rodSession) scrollTo(ctx context.Context, y int) error {
	page := s.bounded(ctx)
	defer page.CancelTimeout()
	if _, err := page.Eval(`(y) => window.scrollTo(0, y)`, y); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (s *rodSession) Document(ctx context.Context) (dom.Document, error) {
	page := s.bounded(ctx)
	defer page.CancelTimeout()
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyPage
	}
	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}
	return dom.NewDocumentFromString(html, info.URL)
}

func (s *rodSession) Expand(ctx context.Context, controls []ExpansionControl, wait WaitSpec) (bool, error) {
	page := s.bounded(ctx)
	defer page.CancelTimeout()
	for _, control := range controls {
		elements, err := page.Elements(control.Selector)
		if err != nil {
			return false, fmt.Errorf("failed to query %s: %w", control.Selector, err)
		}
		for _, el := range elements {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			if control.TextContains != "" {
				text, err := el.Text()
				if err != nil || !strings.Contains(card.Fold(text), card.Fold(control.TextContains)) {
					continue
				}
			}

			href, _ := el.Attribute("href")
			if href != nil {
				s.log.Debug().Str("href", *href).Msg("Expanding listings")
			}

			if err := s.throttle.wait(ctx); err != nil {
				return false, err
			}
			if err := el.ScrollIntoView(); err != nil {
				return false, fmt.Errorf("failed to scroll to control: %w", err)
			}
			// a scripted click works even when an overlay covers the link
			if _, err := el.Eval(`() => this.click()`); err != nil {
				return false, fmt.Errorf("failed to click control: %w", err)
			}
			if err := sleep(ctx, wait.FallbackSleep); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *rodSession) TriggerScript(ctx context.Context, js string) error {
	page := s.bounded(ctx)
	defer page.CancelTimeout()
	if _, err := page.Eval(js); err != nil {
		return fmt.Errorf("failed to run script: %w", err)
	}
	return nil
}

func (s *rodSession) Snapshot(ctx context.Context) (Snapshot, error) {
	page := s.bounded(ctx)
	defer page.CancelTimeout()

	var snap Snapshot
	if info, err := page.Info(); err == nil {
		snap.Title = info.Title
		snap.URL = info.URL
	}
	html, err := page.HTML()
	if err != nil {
		return snap, fmt.Errorf("failed to read page html: %w", err)
	}
	snap.HTML = html

	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return snap, fmt.Errorf("failed to take screenshot: %w", err)
	}
	snap.Screenshot = shot
	return snap, nil
}

func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return err
}
