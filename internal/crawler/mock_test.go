package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/psa10finder/internal/dom"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// MockRenderer serves canned pages keyed by URL
type MockRenderer struct {
	Pages   map[string]string
	Failing map[string]error
	OpenErr error

	mu       sync.Mutex
	opened   int
	closed   int
	rendered []string
	scripts  []string
}

func NewMockRenderer(pages map[string]string) *MockRenderer {
	return &MockRenderer{Pages: pages, Failing: map[string]error{}}
}

func (m *MockRenderer) Name() string {
	return "mock"
}

func (m *MockRenderer) Open(ctx context.Context) (Session, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return &mockSession{
		staticSession: staticSession{baseURL: baseURL, fetch: m.fetch},
		renderer:      m,
	}, nil
}

func (m *MockRenderer) fetch(ctx context.Context, url string, _ WaitSpec) (dom.Document, error) {
	m.mu.Lock()
	m.rendered = append(m.rendered, url)
	m.mu.Unlock()

	if err, ok := m.Failing[url]; ok {
		return nil, err
	}
	html, ok := m.Pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return dom.NewDocumentFromString(html, url)
}

func (m *MockRenderer) Rendered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rendered...)
}

func (m *MockRenderer) Sessions() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// mockSession accepts scripts so the listing scroll runs like in a browser
type mockSession struct {
	staticSession
	renderer *MockRenderer
}

func (s *mockSession) TriggerScript(ctx context.Context, js string) error {
	s.renderer.mu.Lock()
	defer s.renderer.mu.Unlock()
	s.renderer.scripts = append(s.renderer.scripts, js)
	return nil
}

func (s *mockSession) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.staticSession.Snapshot(ctx)
	snap.Screenshot = []byte("png")
	return snap, err
}

func (s *mockSession) Close() error {
	s.renderer.mu.Lock()
	s.renderer.closed++
	s.renderer.mu.Unlock()
	return s.staticSession.Close()
}

// stuckRenderer opens sessions whose renders fail and whose page reads
// block until their context ends, like a browser that stopped responding
type stuckRenderer struct{}

func (stuckRenderer) Name() string { return "stuck" }

func (stuckRenderer) Open(ctx context.Context) (Session, error) {
	return stuckSession{}, nil
}

type stuckSession struct{}

func (stuckSession) Render(ctx context.Context, url string, wait WaitSpec) (dom.Document, error) {
	return nil, fmt.Errorf("navigation to %s timed out", url)
}

func (stuckSession) Document(ctx context.Context) (dom.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stuckSession) Expand(ctx context.Context, controls []ExpansionControl, wait WaitSpec) (bool, error) {
	return false, nil
}

func (stuckSession) TriggerScript(ctx context.Context, js string) error { return nil }

func (stuckSession) Snapshot(ctx context.Context) (Snapshot, error) {
	<-ctx.Done()
	return Snapshot{}, ctx.Err()
}

func (stuckSession) Close() error { return nil }
