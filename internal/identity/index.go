package identity

import (
	"context"
	"fmt"

	"authindex/internal/authority"
	"authindex/internal/kvstore"
)

// Key family prefixes.
const (
	PrefixID      = "id:"
	PrefixHeading = "heading:"
	PrefixExtID   = "extid:"
	PrefixBib     = "bib:"
)

// IDKey returns the id key for nativeID.
func IDKey(nativeID string) string { return PrefixID + nativeID }

// HeadingKey returns the heading key for an already normalized heading.
func HeadingKey(normalized string) string { return PrefixHeading + normalized }

// ExtIDKey returns the external map key for a translated id.
func ExtIDKey(translatedID string) string { return PrefixExtID + translatedID }

// BibKey returns the bib key for a canonical bib id.
func BibKey(bibID string) string { return PrefixBib + bibID }

// Stats counts each key family.
type Stats struct {
	Entries     int `json:"entries"`
	Headings    int `json:"headings"`
	ExternalIDs int `json:"externalIds"`
	Bibs        int `json:"bibs"`
}

// Index reads and writes identity entries.
type Index struct {
	store     *kvstore.Store
	batchSize int
}

// Option configures an Index.
type Option func(*Index)

// WithBatchSize sets how many writes ReplaceExternalIDs and Writer buffer.
func WithBatchSize(size int) Option {
	return func(ix *Index) {
		if size > 0 {
			ix.batchSize = size
		}
	}
}

// New returns an index over store.
func New(store *kvstore.Store, opts ...Option) *Index {
	ix := &Index{store: store, batchSize: 1000}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Store exposes the underlying store.
func (ix *Index) Store() *kvstore.Store { return ix.store }

// RawEntry returns the stored payload for nativeID.
func (ix *Index) RawEntry(ctx context.Context, nativeID string) ([]byte, bool, error) {
	return ix.store.Get(ctx, IDKey(nativeID))
}

// Entry returns the entry for nativeID, or nil when absent.
func (ix *Index) Entry(ctx context.Context, nativeID string) (*authority.Entry, error) {
	raw, ok, err := ix.RawEntry(ctx, nativeID)
	if err != nil || !ok {
		return nil, err
	}
	return DecodeEntry(raw)
}

// Entries looks up several native ids. The result is aligned with ids and
// holds nil for a miss.
func (ix *Index) Entries(ctx context.Context, ids []string) ([]*authority.Entry, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = IDKey(id)
	}
	return ix.multiEntries(ctx, keys)
}

// ByHeadings looks up normalized headings. The result is aligned with terms
// and holds nil for a miss.
func (ix *Index) ByHeadings(ctx context.Context, terms []string) ([]*authority.Entry, error) {
	keys := make([]string, len(terms))
	for i, term := range terms {
		keys[i] = HeadingKey(term)
	}
	return ix.multiEntries(ctx, keys)
}

// HeadingWinner returns the entry currently stored under a normalized heading.
func (ix *Index) HeadingWinner(ctx context.Context, normalized string) (*authority.Entry, error) {
	raw, ok, err := ix.store.Get(ctx, HeadingKey(normalized))
	if err != nil || !ok {
		return nil, err
	}
	return DecodeEntry(raw)
}

func (ix *Index) multiEntries(ctx context.Context, keys []string) ([]*authority.Entry, error) {
	values, err := ix.store.MultiGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*authority.Entry, len(values))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		if out[i], err = DecodeEntry(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", keys[i], err)
		}
	}
	return out, nil
}

// Put writes both keys of e in one transaction.
func (ix *Index) Put(ctx context.Context, e *authority.Entry) error {
	raw, err := EncodeEntry(e)
	if err != nil {
		return err
	}
	return ix.store.SetMany(ctx, []kvstore.KV{
		{Key: IDKey(e.NativeID), Value: raw},
		{Key: HeadingKey(e.NormalizedHeading()), Value: raw},
	})
}

// Rename moves an entry whose heading changed. The old heading key is removed
// only while it still points at the same native id; a different winner keeps
// its key.
func (ix *Index) Rename(ctx context.Context, old, updated *authority.Entry) error {
	raw, err := EncodeEntry(updated)
	if err != nil {
		return err
	}
	return ix.store.Update(ctx, func(tx *kvstore.Tx) error {
		if old != nil {
			if err := deleteHeadingIfOwned(tx, old.NormalizedHeading(), old.NativeID); err != nil {
				return err
			}
		}
		if err := tx.Set(IDKey(updated.NativeID), raw); err != nil {
			return err
		}
		return tx.Set(HeadingKey(updated.NormalizedHeading()), raw)
	})
}

// Remove deletes the id key of e and its heading key when the heading still
// points at e.
func (ix *Index) Remove(ctx context.Context, e *authority.Entry) error {
	return ix.store.Update(ctx, func(tx *kvstore.Tx) error {
		if err := deleteHeadingIfOwned(tx, e.NormalizedHeading(), e.NativeID); err != nil {
			return err
		}
		return tx.Delete(IDKey(e.NativeID))
	})
}

func deleteHeadingIfOwned(tx *kvstore.Tx, normalized, nativeID string) error {
	key := HeadingKey(normalized)
	raw, ok, err := tx.Get(key)
	if err != nil || !ok {
		return err
	}
	owner, err := DecodeEntry(raw)
	if err != nil {
		return err
	}
	if owner.NativeID != nativeID {
		return nil
	}
	return tx.Delete(key)
}

// Stats counts every key family.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	targets := []struct {
		prefix string
		dst    *int
	}{
		{PrefixID, &stats.Entries},
		{PrefixHeading, &stats.Headings},
		{PrefixExtID, &stats.ExternalIDs},
		{PrefixBib, &stats.Bibs},
	}
	for _, target := range targets {
		n, err := ix.store.CountPrefix(ctx, target.prefix)
		if err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", target.prefix, err)
		}
		*target.dst = n
	}
	return stats, nil
}
