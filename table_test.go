package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/store"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(fieldColumns, [][]string{{"only"}})
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "only")
	assert.Empty(t, renderTable(nil, nil))
}

func TestRenderHistory(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := renderHistory([]store.PriceRecord{
		{ID: 2, CardName: "Gengar", Price: store.PriceOf(71), ScrapedAt: at, URL: "https://x", ItemCount: 2},
		{ID: 1, CardName: "Gengar", ScrapedAt: at},
	})
	assert.Contains(t, out, "$71")
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.Equal(t, 2, strings.Count(out, "Gengar"))
}

func TestRenderQuery(t *testing.T) {
	out := renderQuery(card.Query{SubjectTerm: "Gengar", SetTokens: []string{"neo", "destiny"}, NumberToken: "94"})
	assert.Contains(t, out, "neo, destiny")
	assert.Contains(t, out, "Gengar")
}
