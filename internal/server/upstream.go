package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sjsage522/psa10finder/config"
)

const (
	upstreamTimeout   = 30 * time.Second
	maxCertBodyBytes  = 1 << 20
	rawSnippetLength  = 200
	priceChartingUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	psaCertPathPrefix = "/cert/GetByCertNumber/"
)

// Upstream forwards requests to the PSA public API and the PriceCharting
// price guide export
type Upstream struct {
	PSAAPIURL           string
	PSAToken            string
	PriceChartingCSVURL string
	client              *http.Client
}

// NewUpstream creates an Upstream from the configured endpoints and token
func NewUpstream(cfg *config.Config) *Upstream {
	return &Upstream{
		PSAAPIURL:           strings.TrimRight(cfg.PSAAPIURL, "/"),
		PSAToken:            cfg.PSAAPIToken,
		PriceChartingCSVURL: cfg.PriceChartingCSVURL,
		client:              &http.Client{Timeout: upstreamTimeout},
	}
}

// WithUpstream enables the PSA cert and PriceCharting CSV routes
func (h *Handler) WithUpstream(u *Upstream) *Handler {
	h.upstream = u
	return h
}

// PSACert looks up a PSA certificate. The PSA status code and JSON body are
// passed through; a body that is not JSON is reported with its first bytes.
func (h *Handler) PSACert(c *gin.Context) {
	certNumber := strings.TrimSpace(c.Param("certNumber"))
	if h.upstream == nil || h.upstream.PSAToken == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PSA_API_TOKEN is not configured"})
		return
	}
	if certNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing cert number"})
		return
	}

	target := h.upstream.PSAAPIURL + psaCertPathPrefix + url.PathEscape(certNumber)
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	req.Header.Set("Authorization", "Bearer "+h.upstream.PSAToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.upstream.client.Do(req)
	if err != nil {
		h.log.Error().Err(err).Str("cert", certNumber).Msg("PSA cert lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertBodyBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to read PSA response: %v", err)})
		return
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		h.log.Warn().Err(err).Str("cert", certNumber).Msg("PSA response is not JSON")
		data = gin.H{"error": "Invalid JSON response", "raw": truncate(string(body), rawSnippetLength)}
	}

	h.log.Info().
		Str("cert", certNumber).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("PSA cert lookup")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.JSON(resp.StatusCode, gin.H{"error": data})
		return
	}
	c.JSON(http.StatusOK, data)
}

// PriceChartingCSV streams the configured PriceCharting price guide export
func (h *Handler) PriceChartingCSV(c *gin.Context) {
	if h.upstream == nil || h.upstream.PriceChartingCSVURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PRICECHARTING_CSV_URL is not configured"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, h.upstream.PriceChartingCSVURL, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	req.Header.Set("User-Agent", priceChartingUA)

	resp, err := h.upstream.client.Do(req)
	if err != nil {
		h.log.Error().Err(err).Msg("PriceCharting CSV download failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	h.log.Info().
		Int("status", resp.StatusCode).
		Int64("bytes", resp.ContentLength).
		Msg("PriceCharting CSV download")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.JSON(resp.StatusCode, gin.H{"error": "Failed to fetch CSV"})
		return
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, "text/csv", resp.Body, nil)
}

// truncate returns at most n bytes of s without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
