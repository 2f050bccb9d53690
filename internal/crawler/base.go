package crawler

import (
	"fmt"
	"time"

	"sjsage522/psa10finder/pkg/errors"
	"sjsage522/psa10finder/services/cache"
)

// BaseCrawler provides the render back-off shared by marketplace crawlers.
// After a rendering failure the block key is set for BlockTime and every
// scrape fails fast until it expires.
type BaseCrawler struct {
	Provider  string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
}

// checkBlocked returns a rate limit error while the block key is set
func (c *BaseCrawler) checkBlocked() error {
	if c.CacheSvc == nil || c.CacheKey == "" {
		return nil
	}
	if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
		return errors.NewRateLimit(c.Provider, c.BlockTime)
	}
	return nil
}

// block sets the block key; failures to reach the cache are returned but
// never replace the original rendering error
func (c *BaseCrawler) block() error {
	if c.CacheSvc == nil || c.CacheKey == "" || c.BlockTime <= 0 {
		return nil
	}
	value := []byte(fmt.Sprintf("%d", c.BlockTime/time.Second))
	if err := c.CacheSvc.Set(c.CacheKey, value, c.BlockTime); err != nil {
		return errors.NewCache(c.Provider, "failed to set render block", err)
	}
	return nil
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	return c.Provider + "Crawler"
}

// GetProvider returns the marketplace name
func (c *BaseCrawler) GetProvider() string {
	return c.Provider
}
