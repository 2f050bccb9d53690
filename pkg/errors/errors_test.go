package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlerErrorMessage(t *testing.T) {
	err := NewRendering("snkrdunk", "navigate search page", stderrors.New("timeout"), nil)
	assert.Equal(t, "[rendering] snkrdunk: navigate search page - timeout", err.Error())

	nf := NewNotFound("snkrdunk", "no matching card")
	assert.Equal(t, "[not_found] snkrdunk: no matching card", nf.Error())
}

func TestTypeHelpersSeeThroughWrapping(t *testing.T) {
	debug := &DebugInfo{Title: "SNKRDUNK", SourceSnippet: "<html>"}
	base := NewRendering("snkrdunk", "render", stderrors.New("crashed"), debug)
	wrapped := fmt.Errorf("fetch cheapest: %w", base)

	assert.True(t, IsRendering(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, debug, DebugOf(wrapped))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NewNotFound("snkrdunk", "none"))))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.Nil(t, DebugOf(stderrors.New("plain")))
}

func TestConstructors(t *testing.T) {
	cfgErr := NewConfiguration("invalid configuration", stderrors.New("RENDERER must be one of"))
	assert.Equal(t, ErrorTypeConfiguration, TypeOf(cfgErr))
	assert.Equal(t, "[configuration] config: invalid configuration - RENDERER must be one of", cfgErr.Error())

	parseErr := NewParsing("store", "parse scraped_at", stderrors.New("bad time"))
	wrapped := NewStore("query price records", parseErr)
	assert.Equal(t, ErrorTypeStore, TypeOf(wrapped))
	assert.ErrorIs(t, wrapped, parseErr)
}
