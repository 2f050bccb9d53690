package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const fileRetryDelay = 100 * time.Millisecond

// FileLocker locks a file per key under Dir, shared by every process on the host
type FileLocker struct {
	Dir        string
	RetryDelay time.Duration
}

// NewFileLocker creates a FileLocker rooted at dir
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{Dir: dir, RetryDelay: fileRetryDelay}
}

// Path returns the lock file used for key
func (f *FileLocker) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.Dir, hex.EncodeToString(sum[:8])+".lock")
}

// Acquire polls the key's lock file until it is locked or ctx is done
func (f *FileLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(f.Path(key))
	ok, err := fl.TryLockContext(ctx, f.RetryDelay)
	if ctx.Err() != nil {
		return nil, waitError(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrLockTimeout
	}
	return fl.Unlock, nil
}
