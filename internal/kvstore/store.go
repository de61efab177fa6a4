package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store is closed")

// Config controls how a store is opened.
type Config struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	Logger         *slog.Logger
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns persistent-store defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a config for throwaway stores.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// KV is one key/value pair.
type KV struct {
	Key   string
	Value []byte
}

// Store is a badger-backed key/value store. It is safe for concurrent use.
type Store struct {
	db       *badger.DB
	gc       *GCRunner
	path     string
	inMemory bool
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the store described by cfg and starts value-log GC for
// persistent stores when cfg.GCInterval is positive.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("kvstore: path is required for persistent store")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	s := &Store{db: db, path: cfg.Path, inMemory: cfg.InMemory}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.gc = runner
		runner.Start()
	}
	return s, nil
}

// OpenInMemory opens an in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil || s.db.IsClosed() {
		return nil
	}
	if s.gc != nil {
		s.gc.Stop()
		s.gc = nil
	}
	return s.db.Close()
}

// Path returns the on-disk directory, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

// InMemory reports whether the store lives only in memory.
func (s *Store) InMemory() bool { return s.inMemory }

func (s *Store) ready(ctx context.Context) error {
	if s == nil || s.db == nil || s.db.IsClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}

// Get returns the value for key. A missing key returns (nil, false, nil).
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(ctx); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// MultiGet reads keys in one read transaction. The result is aligned with keys
// and holds nil for every miss.
func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	values := make([][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}
			if values[i], err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Set writes one key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, []KV{{Key: key, Value: value}})
}

// SetMany writes pairs atomically in one transaction.
func (s *Store) SetMany(ctx context.Context, pairs []KV) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, kv := range pairs {
			if err := txn.Set([]byte(kv.Key), kv.Value); err != nil {
				return fmt.Errorf("set %q: %w", kv.Key, err)
			}
		}
		return nil
	})
}

// Update runs fn inside one read-write transaction so callers can compare
// and write atomically.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}

// Delete removes keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %q: %w", key, err)
			}
		}
		return nil
	})
}

// DropPrefix removes every key starting with prefix.
func (s *Store) DropPrefix(ctx context.Context, prefix string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if prefix == "" {
		return errors.New("kvstore: refusing to drop empty prefix")
	}
	if err := s.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("drop prefix %q: %w", prefix, err)
	}
	return nil
}

// CountPrefix counts keys starting with prefix without reading values.
func (s *Store) CountPrefix(ctx context.Context, prefix string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if count%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++
		}
		return nil
	})
	return count, err
}

// Scan calls fn for every key starting with prefix, in key order. Returning an
// error from fn stops the scan and is returned as is.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tx is a read-write transaction handed to Update callbacks.
type Tx struct {
	txn *badger.Txn
}

// Get returns the value for key inside the transaction.
func (t *Tx) Get(key string) ([]byte, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stages a write.
func (t *Tx) Set(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

// Delete stages a delete.
func (t *Tx) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}
