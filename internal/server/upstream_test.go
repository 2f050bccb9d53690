package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"sjsage522/psa10finder/config"
)

func newUpstreamRouter(t *testing.T, upstream http.Handler) (*gin.Engine, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		AllowedOrigins:      []string{"*"},
		PSAAPIURL:           server.URL + "/publicapi/",
		PSAAPIToken:         "tok",
		PriceChartingCSVURL: server.URL + "/price-guide/download-custom?category=pokemon-cards",
	}
	gin.SetMode(gin.TestMode)
	handler := NewHandler(&fakeQuerier{}).WithUpstream(NewUpstream(cfg))
	return SetupRouter(cfg, handler), server
}

func TestPSACertPassesThroughJSON(t *testing.T) {
	router, _ := newUpstreamRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/publicapi/cert/GetByCertNumber/12345678":
			w.Write([]byte(`{"PSACert":{"CertNumber":"12345678","Subject":"GENGAR-HOLO","CardGrade":"GEM MT 10"}}`))
		case "/publicapi/cert/GetByCertNumber/404":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"Message":"No data found"}`))
		default:
			w.Write([]byte(`<html>maintenance</html>`))
		}
	}))

	w := get(router, "/api/psa/cert/12345678", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"PSACert":{"CertNumber":"12345678","Subject":"GENGAR-HOLO","CardGrade":"GEM MT 10"}}`, w.Body.String())

	w = get(router, "/api/psa/cert/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"Message":"No data found"}}`, w.Body.String())

	w = get(router, "/api/psa/cert/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON response","raw":"<html>maintenance</html>"}`, w.Body.String())
}

func TestPSACertUpstreamDown(t *testing.T) {
	router, server := newUpstreamRouter(t, http.NotFoundHandler())
	server.Close()

	w := get(router, "/api/psa/cert/12345678", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestPriceChartingCSV(t *testing.T) {
	var fail atomic.Bool
	router, _ := newUpstreamRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price-guide/download-custom", r.URL.Path)
		assert.Equal(t, "pokemon-cards", r.URL.Query().Get("category"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("id,product-name,graded-price\n1,Gengar #94,7100\n"))
	}))

	w := get(router, "/api/pricecharting/csv", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "id,product-name,graded-price\n1,Gengar #94,7100\n", w.Body.String())

	fail.Store(true)
	w = get(router, "/api/pricecharting/csv", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch CSV"}`, w.Body.String())
}

func TestUpstreamRoutesWithoutConfiguration(t *testing.T) {
	router := newTestRouter(&fakeQuerier{})

	w := get(router, "/api/psa/cert/12345678", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"PSA_API_TOKEN is not configured"}`, w.Body.String())

	w = get(router, "/api/pricecharting/csv", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"PRICECHARTING_CSV_URL is not configured"}`, w.Body.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "a", truncate("a¥", 2))
}
