package identity

import (
	"context"
	"fmt"
	"sort"
)

// ExternalIDs looks up external identifier maps by translated id. The result
// is aligned with ids and holds nil for a miss.
func (ix *Index) ExternalIDs(ctx context.Context, ids []string) ([]map[string]string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ExtIDKey(id)
	}
	values, err := ix.store.MultiGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(values))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		if out[i], err = decodeExternal(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", keys[i], err)
		}
	}
	return out, nil
}

// ReplaceExternalIDs drops the whole extid family and writes ids in batches.
// It returns the number of entities written.
func (ix *Index) ReplaceExternalIDs(ctx context.Context, ids map[string]map[string]string) (int, error) {
	if err := ix.store.DropPrefix(ctx, PrefixExtID); err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	batch := ix.store.NewBatch(ix.batchSize)
	for _, id := range keys {
		raw, err := encodeExternal(ids[id])
		if err != nil {
			return 0, fmt.Errorf("encode external ids for %s: %w", id, err)
		}
		if err := batch.Set(ctx, ExtIDKey(id), raw); err != nil {
			return 0, err
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Bib returns the stored MARCXML for a canonical bib id.
func (ix *Index) Bib(ctx context.Context, bibID string) ([]byte, bool, error) {
	return ix.store.Get(ctx, BibKey(bibID))
}

// PutBib stores the MARCXML for a canonical bib id.
func (ix *Index) PutBib(ctx context.Context, bibID string, record []byte) error {
	return ix.store.Set(ctx, BibKey(bibID), record)
}

// RemoveBib deletes a bib record. A missing id is not an error.
func (ix *Index) RemoveBib(ctx context.Context, bibID string) error {
	return ix.store.Delete(ctx, BibKey(bibID))
}
