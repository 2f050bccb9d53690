package publisher

import (
	"context"
	"encoding/base64"

	"github.com/redis/go-redis/v9"

	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/pkg/errors"
)

// RedisPublisher implements Publisher on a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher().WithField("stream", stream),
	}
}

// Publish appends a message to the stream.
// The message is base64 encoded before publishing.
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Result()
	if err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("Failed to publish message")
		return errors.NewPublisher("redis", "failed to publish to "+p.stream, err)
	}
	p.log.Debug().Str("key", key).Str("id", id).Int("bytes", len(message)).Msg("Published message")
	return nil
}

// TrimStreams trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	trimmed, err := p.client.XTrimMaxLen(ctx, p.stream, int64(p.streamMaxLength)).Result()
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to trim stream")
		return errors.NewPublisher("redis", "failed to trim "+p.stream, err)
	}
	if trimmed > 0 {
		p.log.Debug().Int64("trimmed", trimmed).Int("max_length", p.streamMaxLength).Msg("Trimmed stream")
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
