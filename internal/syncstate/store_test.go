package syncstate_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"authindex/internal/syncstate"
)

func openStore(t *testing.T) (*syncstate.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := syncstate.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestCursorLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)

	cur, err := store.Get(ctx, "authority")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cur.HasSynced() || cur.InProgress || cur.IndexType != "authority" {
		t.Fatalf("unexpected fresh cursor %+v", cur)
	}

	if err := store.MarkStarted(ctx, "authority", "run-1"); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	cur, _ = store.Get(ctx, "authority")
	if !cur.InProgress || cur.RunID != "run-1" || cur.LastStartedAt.IsZero() {
		t.Fatalf("unexpected running cursor %+v", cur)
	}

	windowEnd := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	if err := store.MarkCompleted(ctx, "authority", windowEnd, map[string]int{"updated": 3}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	cur, _ = store.Get(ctx, "authority")
	if cur.InProgress || !cur.LastSyncTime.Equal(windowEnd) || cur.LastError != "" {
		t.Fatalf("unexpected completed cursor %+v", cur)
	}
	var result map[string]int
	if err := json.Unmarshal(cur.LastResult, &result); err != nil || result["updated"] != 3 {
		t.Fatalf("unexpected result %s (%v)", cur.LastResult, err)
	}

	if err := store.MarkStarted(ctx, "authority", "run-2"); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	if err := store.MarkAborted(ctx, "authority", errors.New("upstream went away")); err != nil {
		t.Fatalf("MarkAborted: %v", err)
	}
	cur, _ = store.Get(ctx, "authority")
	if cur.InProgress || !cur.LastSyncTime.Equal(windowEnd) || cur.LastError != "upstream went away" {
		t.Fatalf("aborted run must keep the cursor: %+v", cur)
	}
}

func TestResetStaleAfterReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openStore(t)
	if err := store.MarkStarted(ctx, "bibliographic", "run-1"); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	store.Close()

	reopened, err := syncstate.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	n, err := reopened.ResetStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetStale = %d, %v", n, err)
	}
	cur, _ := reopened.Get(ctx, "bibliographic")
	if cur.InProgress || cur.LastError == "" {
		t.Fatalf("unexpected cursor after reset %+v", cur)
	}
}
