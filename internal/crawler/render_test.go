package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketplace(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/en/trading-cards/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Card</title></head><body>
			<div style="display:none"><a href="/hidden">See More</a></div>
			<a class="arrow" href="/en/trading-cards/1/used?slide=right">See More</a>
		</body></html>`))
	})
	mux.HandleFunc("/en/trading-cards/1/used", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Used</title></head><body></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPRendererExpand(t *testing.T) {
	server := newMarketplace(t)
	renderer := NewHTTPRenderer(server.URL, 0)
	assert.Equal(t, "http", renderer.Name())

	ctx := context.Background()
	session, err := renderer.Open(ctx)
	require.NoError(t, err)
	defer session.Close()

	doc, err := session.Render(ctx, server.URL+"/en/trading-cards/1", WaitSpec{})
	require.NoError(t, err)
	assert.Equal(t, "Card", doc.Title())

	expanded, err := session.Expand(ctx, ExpansionControls, WaitSpec{})
	require.NoError(t, err)
	assert.True(t, expanded)

	doc, err = session.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Used", doc.Title())
	assert.Equal(t, server.URL+"/en/trading-cards/1/used?slide=right", doc.URL())

	assert.True(t, errors.Is(session.TriggerScript(ctx, "1"), errors.ErrUnsupported))

	snap, err := session.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Used", snap.Title)
	assert.Empty(t, snap.Screenshot)
}

func TestHTTPRendererRenderError(t *testing.T) {
	server := newMarketplace(t)
	session, err := NewHTTPRenderer(server.URL, 0).Open(context.Background())
	require.NoError(t, err)

	_, err = session.Render(context.Background(), server.URL+"/missing", WaitSpec{})
	assert.ErrorContains(t, err, "unexpected status code: 404")

	_, err = session.Document(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPage)
}

func TestStaticSessionExpandSkipsHiddenControls(t *testing.T) {
	pages := map[string]string{
		cardURL: `<div hidden><a href="/en/trading-cards/111/used?slide=right">x</a></div>
			<a class="arrow" style="visibility: hidden">See More</a>`,
	}
	session, err := NewMockRenderer(pages).Open(context.Background())
	require.NoError(t, err)

	_, err = session.Render(context.Background(), cardURL, WaitSpec{})
	require.NoError(t, err)

	expanded, err := session.Expand(context.Background(), ExpansionControls, WaitSpec{})
	require.NoError(t, err)
	assert.False(t, expanded)
}

func TestExpandWithoutDocument(t *testing.T) {
	session, err := NewMockRenderer(nil).Open(context.Background())
	require.NoError(t, err)

	expanded, err := session.Expand(context.Background(), ExpansionControls, WaitSpec{})
	assert.NoError(t, err)
	assert.False(t, expanded)
}

func TestThrottle(t *testing.T) {
	th := newThrottle(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, th.wait(ctx))
	require.NoError(t, th.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, th.wait(canceled))

	var unset *throttle
	assert.NoError(t, unset.wait(ctx))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleep(ctx, time.Hour))
}
