package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "psa10:lock:"
	redisRetryDelay = 200 * time.Millisecond
	defaultLockTTL  = 10 * time.Minute
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker is a lock shared by every process using the same Redis
type RedisLocker struct {
	client     *redis.Client
	TTL        time.Duration
	RetryDelay time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl is how long a held key lives; it must
// outlast a scrape and bounds how long a crashed holder blocks others.
func NewRedisLocker(addr string, db int, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:     redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		TTL:        ttl,
		RetryDelay: redisRetryDelay,
	}
}

// Acquire sets the key with a fresh token, retrying until ctx is done
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.TTL).Result()
		if ctx.Err() != nil {
			return nil, waitError(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		if err := sleepCtx(ctx, r.RetryDelay); err != nil {
			return nil, err
		}
	}

	return func() error {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err()
	}, nil
}

// Close closes the Redis connection
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
