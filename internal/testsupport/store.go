package testsupport

import (
	"testing"

	"authindex/internal/identity"
	"authindex/internal/kvstore"
)

// OpenStore opens an in-memory kvstore and registers cleanup.
func OpenStore(t testing.TB) *kvstore.Store {
	t.Helper()

	store, err := kvstore.OpenInMemory()
	if err != nil {
		t.Fatalf("kvstore.OpenInMemory: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// OpenIndex opens an identity index over a fresh in-memory store.
func OpenIndex(t testing.TB) *identity.Index {
	t.Helper()
	return identity.New(OpenStore(t), identity.WithBatchSize(2))
}
