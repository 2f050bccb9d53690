package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisLocker(t *testing.T) {
	first := NewRedisLocker("localhost:6379", 0, 5*time.Second)
	defer first.Close()

	if err := first.client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	second := NewRedisLocker("localhost:6379", 0, 5*time.Second)
	defer second.Close()
	second.RetryDelay = 10 * time.Millisecond

	key := "test-" + t.Name()
	release, err := first.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = second.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, release())

	release, err = second.Acquire(context.Background(), key)
	require.NoError(t, err)

	// a stale release from the first holder must not free the second holder's lock
	require.NoError(t, first.client.Set(context.Background(), redisKeyPrefix+key, "other", time.Second).Err())
	assert.NoError(t, release())
	value, err := first.client.Get(context.Background(), redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", value)
	first.client.Del(context.Background(), redisKeyPrefix+key)
}
