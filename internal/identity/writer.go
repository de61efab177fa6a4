package identity

import (
	"context"

	"authindex/internal/authority"
	"authindex/internal/kvstore"
)

// Writer buffers entry writes for bulk loads. Each Put stages both keys.
type Writer struct {
	batch *kvstore.Batch
}

// NewWriter returns a buffered writer flushing every size entries.
func (ix *Index) NewWriter(size int) *Writer {
	if size <= 0 {
		size = ix.batchSize
	}
	// Every entry stages two keys.
	return &Writer{batch: ix.store.NewBatch(size * 2)}
}

// Put stages both keys of e.
func (w *Writer) Put(ctx context.Context, e *authority.Entry) error {
	raw, err := EncodeEntry(e)
	if err != nil {
		return err
	}
	if err := w.batch.Set(ctx, IDKey(e.NativeID), raw); err != nil {
		return err
	}
	return w.batch.Set(ctx, HeadingKey(e.NormalizedHeading()), raw)
}

// Flush commits staged writes.
func (w *Writer) Flush(ctx context.Context) error {
	return w.batch.Flush(ctx)
}
