package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/psa10finder/pkg/errors"
)

// TestBaseCrawler tests the render back-off
func TestBaseCrawler(t *testing.T) {
	mockCache := NewMockCacheService()
	crawler := BaseCrawler{
		Provider:  "test",
		CacheKey:  "test_render_blocked",
		CacheSvc:  mockCache,
		BlockTime: 30 * time.Second,
	}

	assert.NoError(t, crawler.checkBlocked())

	require.NoError(t, crawler.block())
	value, err := mockCache.Get("test_render_blocked")
	require.NoError(t, err)
	assert.Equal(t, "30", string(value))

	err = crawler.checkBlocked()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))

	require.NoError(t, mockCache.Delete("test_render_blocked"))
	assert.NoError(t, crawler.checkBlocked())

	assert.Equal(t, "testCrawler", crawler.GetName())
	assert.Equal(t, "test", crawler.GetProvider())
}

func TestBaseCrawlerWithoutCache(t *testing.T) {
	crawler := BaseCrawler{Provider: "test", CacheKey: "k", BlockTime: time.Second}

	assert.NoError(t, crawler.block())
	assert.NoError(t, crawler.checkBlocked())
}
