package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockRetryDelay = 100 * time.Millisecond
	lockTimeout    = 5 * time.Second
)

// WithCacheLock runs fn while holding the snapshot lock. It gives up after
// lockTimeout if another process keeps the lock.
func WithCacheLock(fn func() error) error {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return err
	}
	lock := flock.New(filepath.Join(cacheDir, lockFile))

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire cache lock: %s is held by another process", lock.Path())
	}
	defer func() {
		if releaseErr := lock.Unlock(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to release lock: %v\n", releaseErr)
		}
	}()
	return fn()
}
