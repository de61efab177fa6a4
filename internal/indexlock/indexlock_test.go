package indexlock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"authindex/internal/indexlock"
	"authindex/internal/services"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "authority.lock")
	first, err := indexlock.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := indexlock.Acquire(path); !errors.Is(err, indexlock.ErrBusy) || !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := indexlock.Acquire(path)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	_ = second.Release()
}
