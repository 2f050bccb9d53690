package main

import (
	"context"
	"fmt"
	"io"

	"sjsage522/psa10finder/config"
	"sjsage522/psa10finder/helpers"
	"sjsage522/psa10finder/internal/crawler"
	"sjsage522/psa10finder/internal/lock"
	"sjsage522/psa10finder/internal/store"
	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/services/cache"
	"sjsage522/psa10finder/services/lookup"
	"sjsage522/psa10finder/services/proxy"
	"sjsage522/psa10finder/services/publisher"
)

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Locker    lock.Locker
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Crawler   *crawler.SnkrdunkCrawler
	Lookup    *lookup.Service
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	log := logger.Default
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close publisher")
		}
	}
	if closer, ok := s.Locker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close locker")
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}
	log := logger.Default

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = st
	log.Debug().Str("driver", cfg.StoreDriver).Msg("Opened price store")

	locker, err := lock.New(cfg)
	if err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Locker = locker

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		log.Debug().Str("addr", cfg.MemcacheAddr).Msg("Render back-off uses memcache")
	}

	services.Publisher = publisher.NopPublisher{}
	if cfg.PublishResults {
		services.Publisher = publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		log.Debug().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Publishing results to Redis")
	}

	renderer, err := newRenderer(ctx, cfg)
	if err != nil {
		services.Cleanup()
		return nil, err
	}

	services.Crawler = crawler.NewSnkrdunkCrawler(
		renderer,
		services.Cache,
		helpers.NewDiagnostics(cfg.DebugDir),
		crawlerOptions(cfg),
	)
	services.Lookup = lookup.NewService(services.Crawler, services.Store, services.Locker, services.Publisher, cfg.LockTimeout)

	return services, nil
}

// newRenderer picks the rendering backend named by cfg.Renderer
func newRenderer(ctx context.Context, cfg *config.Config) (crawler.Renderer, error) {
	switch cfg.Renderer {
	case "rod":
		proxyURL, err := proxy.Choose(ctx, cfg.ProxyURLs, 0)
		if err != nil {
			return nil, err
		}
		return crawler.NewRodRenderer(cfg.ChromeBin, cfg.Headless, proxyURL, cfg.NavigationInterval, cfg.NavigationTimeout), nil
	case "browserless":
		return crawler.NewBrowserlessRenderer(cfg.BrowserlessAddr, cfg.BaseURL, cfg.NavigationInterval), nil
	case "http":
		return crawler.NewHTTPRenderer(cfg.BaseURL, cfg.NavigationInterval), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
}

// crawlerOptions overlays the configured pacing on the defaults
func crawlerOptions(cfg *config.Config) crawler.Options {
	opts := crawler.DefaultOptions()
	opts.BaseURL = cfg.BaseURL
	opts.WaitTimeout = cfg.WaitTimeout
	opts.FallbackSleep = cfg.FallbackSleep
	opts.ScrollSteps = cfg.ScrollSteps
	opts.BlockTime = cfg.RenderBlockTime
	return opts
}
