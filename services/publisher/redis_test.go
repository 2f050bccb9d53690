package publisher

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/pkg/errors"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_psa10", 10)
	defer publisher.Close()

	// Create a subscriber to verify the message was published
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	// Test if Redis is available
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	err := client.XGroupCreateMkStream(ctx, "test_stream_psa10", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	messages := make(chan string, 1)

	go func() {
		message, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_psa10", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		if !assert.NoError(t, err) {
			return
		}
		messages <- message[0].Messages[0].Values["b64_price"].(string)
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish(ctx, "b64_price", []byte("test_message"))
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", msg) // base64 of "test_message"
	case <-time.After(1 * time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams(ctx))
	length, err := client.XLen(ctx, "test_stream_psa10").Result()
	assert.NoError(t, err)
	assert.LessOrEqual(t, length, int64(10))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "k", []byte("v")))
	assert.NoError(t, p.TrimStreams(context.Background()))
	assert.NoError(t, p.Close())
}

func TestRedisPublisherLogsFailures(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	defer logger.Init()

	// nothing listens on port 1
	publisher := NewRedisPublisher("127.0.0.1:1", 0, "unreachable_stream", 10)
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := publisher.Publish(ctx, "b64_price", []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePublisher, errors.TypeOf(err))

	assert.Error(t, publisher.TrimStreams(ctx))

	out := buf.String()
	assert.Contains(t, out, "component=publisher")
	assert.Contains(t, out, "stream=unreachable_stream")
	assert.Contains(t, out, "Failed to publish message")
	assert.Contains(t, out, "Failed to trim stream")
}
