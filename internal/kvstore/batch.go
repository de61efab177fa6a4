package kvstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const defaultBatchSize = 1000

// Batch buffers writes and commits them through a badger WriteBatch every
// size pending pairs. It is not safe for concurrent use.
type Batch struct {
	store   *Store
	size    int
	pending []KV
	written int
}

// NewBatch returns a write batch flushing every size writes.
func (s *Store) NewBatch(size int) *Batch {
	if size <= 0 {
		size = defaultBatchSize
	}
	return &Batch{store: s, size: size, pending: make([]KV, 0, size)}
}

// Set buffers one write and flushes when the batch is full.
func (b *Batch) Set(ctx context.Context, key string, value []byte) error {
	b.pending = append(b.pending, KV{Key: key, Value: value})
	if len(b.pending) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered writes.
func (b *Batch) Pending() int { return len(b.pending) }

// Written returns the number of writes committed so far.
func (b *Batch) Written() int { return b.written }

// Flush commits every buffered write.
func (b *Batch) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.store.ready(ctx); err != nil {
		return err
	}
	wb := b.store.db.NewWriteBatch()
	for _, kv := range b.pending {
		if err := wb.SetEntry(badger.NewEntry([]byte(kv.Key), kv.Value)); err != nil {
			wb.Cancel()
			return fmt.Errorf("batch set %q: %w", kv.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	b.written += len(b.pending)
	b.pending = b.pending[:0]
	return nil
}
