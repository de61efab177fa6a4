package kvstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authindex/internal/kvstore"
)

func openMem(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetAndMultiGet(t *testing.T) {
	ctx := context.Background()
	store := openMem(t)
	require.NoError(t, store.SetMany(ctx, []kvstore.KV{
		{Key: "id:a1", Value: []byte("one")},
		{Key: "id:a3", Value: []byte("three")},
	}))

	value, ok, err := store.Get(ctx, "id:a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("one"), value)

	_, ok, err = store.Get(ctx, "id:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	values, err := store.MultiGet(ctx, []string{"id:a3", "id:a2", "id:a1"})
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, []byte("three"), values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, []byte("one"), values[2])
}

func TestPrefixOperations(t *testing.T) {
	ctx := context.Background()
	store := openMem(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("extid:a%d", i), []byte("{}")))
	}
	require.NoError(t, store.Set(ctx, "id:a1", []byte("{}")))

	count, err := store.CountPrefix(ctx, "extid:")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	var keys []string
	require.NoError(t, store.Scan(ctx, "extid:", func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"extid:a0", "extid:a1", "extid:a2", "extid:a3", "extid:a4"}, keys)

	require.NoError(t, store.DropPrefix(ctx, "extid:"))
	count, err = store.CountPrefix(ctx, "extid:")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, ok, err := store.Get(ctx, "id:a1")
	require.NoError(t, err)
	assert.True(t, ok, "other families must survive a prefix drop")

	assert.Error(t, store.DropPrefix(ctx, ""))
}

func TestBatchFlushesEverySize(t *testing.T) {
	ctx := context.Background()
	store := openMem(t)
	batch := store.NewBatch(3)
	for i := 0; i < 7; i++ {
		require.NoError(t, batch.Set(ctx, fmt.Sprintf("k%02d", i), []byte("v")))
	}
	assert.Equal(t, 6, batch.Written())
	assert.Equal(t, 1, batch.Pending())

	count, err := store.CountPrefix(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	require.NoError(t, batch.Flush(ctx))
	count, err = store.CountPrefix(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openMem(t)
	require.NoError(t, store.Set(ctx, "heading:X", []byte("a1")))

	err := store.Update(ctx, func(tx *kvstore.Tx) error {
		value, ok, err := tx.Get("heading:X")
		require.NoError(t, err)
		require.True(t, ok)
		if string(value) == "a1" {
			return tx.Delete("heading:X")
		}
		return nil
	})
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, "heading:X")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "never-there"))
}

func TestPersistentStoreReopens(t *testing.T) {
	ctx := context.Background()
	cfg := kvstore.DefaultConfig(t.TempDir())
	cfg.GCInterval = time.Hour
	store, err := kvstore.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "id:a1", []byte("persisted")))
	require.NoError(t, store.Close())

	store, err = kvstore.Open(cfg)
	require.NoError(t, err)
	defer store.Close()
	value, ok, err := store.Get(ctx, "id:a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("persisted"), value)
}

func TestClosedStoreAndCancelledContext(t *testing.T) {
	_, err := kvstore.Open(kvstore.Config{})
	assert.Error(t, err)

	store := openMem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = store.Get(ctx, "x")
	assert.Error(t, err)

	require.NoError(t, store.Close())
	_, _, err = store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, kvstore.ErrClosed)
}
