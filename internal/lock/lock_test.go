package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/psa10finder/config"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		running atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "Gengar")
			if !assert.NoError(t, err) {
				return
			}
			n := running.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			assert.NoError(t, release())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Empty(t, m.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := m.Acquire(timeout, "b")
	require.NoError(t, err)
	assert.NoError(t, releaseB())
}

func TestKeyedMutexTimeout(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = m.Acquire(canceled, "k")
	assert.ErrorIs(t, err, context.Canceled)

	// releasing twice is harmless
	assert.NoError(t, release())
	assert.NoError(t, release())
	assert.Empty(t, m.locks)
}

func TestFileLockerExcludesOtherHolders(t *testing.T) {
	dir := t.TempDir()
	first := NewFileLocker(dir)
	second := NewFileLocker(dir)
	second.RetryDelay = 5 * time.Millisecond

	release, err := first.Acquire(context.Background(), "Gengar|Neo 4|94")
	require.NoError(t, err)
	assert.FileExists(t, first.Path("Gengar|Neo 4|94"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = second.Acquire(ctx, "Gengar|Neo 4|94")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, release())

	release, err = second.Acquire(context.Background(), "Gengar|Neo 4|94")
	require.NoError(t, err)
	assert.NoError(t, release())
}

func TestFileLockerPath(t *testing.T) {
	f := NewFileLocker("/tmp/locks")
	assert.Equal(t, f.Path("a"), f.Path("a"))
	assert.NotEqual(t, f.Path("a"), f.Path("b"))
	assert.Regexp(t, `^/tmp/locks/[0-9a-f]{16}\.lock$`, f.Path("Mr. Mime/../x"))
}

type failingLocker struct{ err error }

func (f failingLocker) Acquire(ctx context.Context, key string) (Release, error) {
	return nil, f.err
}

func TestChainReleasesOnFailure(t *testing.T) {
	local := NewKeyedMutex()
	boom := errors.New("boom")

	_, err := Chain(local, failingLocker{err: boom}).Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, boom)

	// the keyed mutex was released when the second locker failed
	assert.Empty(t, local.locks)
}

func TestChainAcquireAndRelease(t *testing.T) {
	local := NewKeyedMutex()
	locker := Chain(local, NewFileLocker(t.TempDir()))

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	assert.Len(t, local.locks, 1)
	assert.NoError(t, release())
	assert.NoError(t, release())
	assert.Empty(t, local.locks)
}

func TestNew(t *testing.T) {
	locker, err := New(&config.Config{LockBackend: "file", LockDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, locker)

	_, err = New(&config.Config{LockBackend: "etcd"})
	assert.ErrorContains(t, err, "unknown lock backend")
}

func TestNewRedisUsesLockTTL(t *testing.T) {
	locker, err := New(&config.Config{
		LockBackend: "redis",
		RedisAddr:   "localhost:6379",
		LockTimeout: 3 * time.Minute,
		LockTTL:     10 * time.Minute,
	})
	require.NoError(t, err)
	defer locker.(interface{ Close() error }).Close()

	c, ok := locker.(chain)
	require.True(t, ok)
	require.Len(t, c, 2)
	redisLocker, ok := c[1].(*RedisLocker)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, redisLocker.TTL)
}

func TestChainClose(t *testing.T) {
	locker := Chain(NewKeyedMutex(), NewRedisLocker("localhost:6379", 0, time.Second))
	closer, ok := locker.(interface{ Close() error })
	require.True(t, ok)
	assert.NoError(t, closer.Close())
}
