package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A small marketplace with one search page, one card page and its
// expanded used-listing page
const (
	testSearchHTML = `<!DOCTYPE html>
<html>
<head><title>Gengar | SNKRDUNK</title></head>
<body>
	<ul class="product__list">
		<li class="product__item"><a href="/en/trading-cards/222"><img alt="Gengar Fossil 005/062"></a>
			<p class="product__item-name">Gengar Fossil</p></li>
		<li class="product__item"><a href="/en/trading-cards/111"><img alt="Gengar Holo Destiny 094/105"></a>
			<p class="product__item-name">Gengar Holo Destiny</p></li>
	</ul>
</body>
</html>`

	testCardHTML = `<!DOCTYPE html>
<html>
<head><title>Gengar Holo | SNKRDUNK</title></head>
<body>
	<ul><li class="product__item"><p class="evaluation">PSA 10</p><p class="price">US $500</p></li></ul>
	<a class="arrow" href="/en/trading-cards/111/used?slide=right">See More</a>
</body>
</html>`

	testUsedHTML = `<!DOCTYPE html>
<html>
<head><title>Used | SNKRDUNK</title></head>
<body>
	<ul>
		<li class="item--used"><p class="evaluation">PSA 10</p><p class="price">US $1,285</p></li>
		<li class="item--used"><p class="evaluation">PSA 10</p><p class="price">¥10,650</p></li>
		<li class="item--used"><span class="label-sold">SOLD</span><p class="evaluation">PSA 10</p><p class="price">US $15</p></li>
		<li class="item--used"><p class="evaluation">PSA 9</p><p class="price">US $20</p></li>
	</ul>
</body>
</html>`
)

type marketplace struct {
	*httptest.Server
	searches atomic.Int32
}

func newTestMarketplace(t *testing.T) *marketplace {
	t.Helper()
	m := &marketplace{}
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(body))
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/en/search/result", func(w http.ResponseWriter, r *http.Request) {
		m.searches.Add(1)
		page(testSearchHTML)(w, r)
	})
	mux.HandleFunc("/en/trading-cards/111", page(testCardHTML))
	mux.HandleFunc("/en/trading-cards/111/used", page(testUsedHTML))
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

func setupTestEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RENDERER", "http")
	t.Setenv("SNKRDUNK_BASE_URL", baseURL)
	t.Setenv("NAVIGATION_INTERVAL_MS", "0")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "snkrdunk.db"))
	t.Setenv("LOCK_BACKEND", "file")
	t.Setenv("LOCK_DIR", filepath.Join(dir, "locks"))
	t.Setenv("DEBUG_DIR", dir)
	t.Setenv("MEMCACHE_ADDR", "")
	t.Setenv("PUBLISH_RESULTS", "false")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIntegration(t *testing.T) {
	market := newTestMarketplace(t)
	setupTestEnv(t, market.URL)

	out, err := execute(t, "query", "GENGAR-HOLO", "Pokemon Japanese Neo 4", "94")
	require.NoError(t, err)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &first), out)
	assert.Equal(t, true, first["success"])
	assert.Equal(t, "GENGAR-HOLO", first["cardTitle"])
	assert.Equal(t, 71.0, first["latestPrice"])
	assert.Equal(t, 2.0, first["psa10Listings"])
	assert.Equal(t, market.URL+"/en/trading-cards/111/used?slide=right", first["url"])
	assert.NotEmpty(t, first["scrapedAt"])

	// the second query is answered from the store
	out, err = execute(t, "GENGAR-HOLO", "Pokemon Japanese Neo 4", "94")
	require.NoError(t, err)
	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &second), out)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), market.searches.Load())

	out, err = execute(t, "history", "GENGAR", "--json")
	require.NoError(t, err)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &history), out)
	require.Len(t, history, 1)
	assert.Equal(t, 71.0, history[0]["price"])

	out, err = execute(t, "history", "GENGAR")
	require.NoError(t, err)
	assert.Contains(t, out, "GENGAR-HOLO")
	assert.Contains(t, out, "$71")
}

func TestIntegrationNotFound(t *testing.T) {
	market := newTestMarketplace(t)
	setupTestEnv(t, market.URL)

	// no search result names the card
	out, err := execute(t, "query", "Haunter", "Fossil", "21")
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Card not found on SNKRDUNK."}`, out)
	assert.Equal(t, int32(1), market.searches.Load())
}

func TestNoKeywordProvided(t *testing.T) {
	out, err := execute(t)
	var exit exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.code)
	assert.JSONEq(t, `{"success":false,"error":"No keyword provided"}`, out)
}

func TestNormalizeCommand(t *testing.T) {
	out, err := execute(t, "normalize", "GENGAR-HOLO", "Pokemon Japanese Neo 4", "94", "--json")
	require.NoError(t, err)

	var q map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &q), out)
	assert.Equal(t, "Gengar", q["subject_term"])
	assert.Equal(t, "destiny", q["mapped_set"])
	assert.Equal(t, "94", q["number_token"])

	out, err = execute(t, "normalize", "Dark Charizard")
	require.NoError(t, err)
	assert.Contains(t, out, "Subject term")
	assert.Contains(t, out, "Charizard")
}

func TestHistoryEmpty(t *testing.T) {
	setupTestEnv(t, "https://snkrdunk.com")
	out, err := execute(t, "history", "Mew")
	require.NoError(t, err)
	assert.Contains(t, out, `No records for "Mew"`)
}

func TestQueryInvalidConfiguration(t *testing.T) {
	setupTestEnv(t, "https://snkrdunk.com")
	t.Setenv("RENDERER", "selenium")

	out, err := execute(t, "query", "Mew")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "[configuration] config: invalid configuration")
	assert.Contains(t, result["error"], "RENDERER")
}
