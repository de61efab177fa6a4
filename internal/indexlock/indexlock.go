// Package indexlock serializes writers of one index type across processes.
// The bulk indexer and the incremental synchronizer take the same lock file.
package indexlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"authindex/internal/services"
)

// ErrBusy reports that another process holds the lock.
var ErrBusy = fmt.Errorf("%w: index is locked by another writer", services.ErrBusy)

// Lock is a held index lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks. Calling it on a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
