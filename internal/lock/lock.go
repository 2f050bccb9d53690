package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"sjsage522/psa10finder/config"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context expired
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Release gives a lock back. It is safe to call once.
type Release func() error

// Locker serializes work per key
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// New returns the in-process keyed mutex chained with the cross-process
// backend named by cfg.LockBackend
func New(cfg *config.Config) (Locker, error) {
	local := NewKeyedMutex()
	switch cfg.LockBackend {
	case "file":
		return Chain(local, NewFileLocker(cfg.LockDir)), nil
	case "redis":
		return Chain(local, NewRedisLocker(cfg.RedisAddr, cfg.RedisDB, cfg.LockTTL)), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// KeyedMutex is an in-process mutex per key
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Acquire blocks until key is free or ctx is done
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, entry)
		return nil, waitError(ctx)
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-entry.ch
			m.unref(key, entry)
		})
		return nil
	}, nil
}

func (m *KeyedMutex) unref(key string, entry *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
}

type chain []Locker

// Chain acquires every locker in order and releases them in reverse
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

func (c chain) Acquire(ctx context.Context, key string) (Release, error) {
	releases := make([]Release, 0, len(c))
	releaseAll := func() error {
		var errs []error
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, locker := range c {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			_ = releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}

	var once sync.Once
	var err error
	return func() error {
		once.Do(func() { err = releaseAll() })
		return err
	}, nil
}

// Close closes every chained locker that holds a connection
func (c chain) Close() error {
	var errs []error
	for _, locker := range c {
		if closer, ok := locker.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// waitError maps an expired context to ErrLockTimeout
func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return waitError(ctx)
	}
}
