package publisher

import "context"

// Publisher represents a service for publishing scrape results
type Publisher interface {
	// Publish publishes a message under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher discards everything; used when publishing is disabled
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, key string, message []byte) error { return nil }

func (NopPublisher) TrimStreams(ctx context.Context) error { return nil }

func (NopPublisher) Close() error { return nil }
