// Package service aggregates the index, synchronizer and resolver behind the
// operations the HTTP API and CLI are allowed to call.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authindex/internal/authority"
	"authindex/internal/config"
	"authindex/internal/enrich"
	"authindex/internal/identity"
	"authindex/internal/kvstore"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/services"
	"authindex/internal/syncstate"
	"authindex/internal/textutil"
	"authindex/internal/updater"
	"authindex/internal/upstream"
)

// StartResult reports whether a sync was accepted or the type was busy.
type StartResult = updater.StartResult

// SyncStatus is the externally visible state of one index type.
type SyncStatus = updater.Status

// Upstream is what the service needs from the upstream client.
type Upstream interface {
	updater.Feed
	enrich.Fetcher
}

// Authority merges the stored entry of a native id with its external ids.
type Authority struct {
	ID       string            `json:"id"`
	Internal *authority.Entry  `json:"idsFromInternal"`
	External map[string]string `json:"idsFromExternal"`
}

// Service is safe for concurrent use.
type Service struct {
	cfg      *config.Config
	index    *identity.Index
	state    *syncstate.Store
	sync     *updater.Synchronizer
	resolver *enrich.Resolver
	up       Upstream
	logger   *slog.Logger

	closers []func() error
}

// Option customizes a Service built with New.
type Option func(*options)

type options struct {
	syncOpts []updater.Option
}

// WithSyncOptions forwards options to the synchronizer.
func WithSyncOptions(opts ...updater.Option) Option {
	return func(o *options) {
		o.syncOpts = append(o.syncOpts, opts...)
	}
}

// New wires a service over already-open dependencies. The caller keeps
// ownership of index and state.
func New(cfg *config.Config, index *identity.Index, state *syncstate.Store, up Upstream, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		cfg:      cfg,
		index:    index,
		state:    state,
		sync:     updater.New(cfg, index, up, state, logger, o.syncOpts...),
		resolver: enrich.New(cfg, index, up, logger),
		up:       up,
		logger:   logging.NewComponentLogger(logger, "service"),
	}
}

// Open opens the persistent index and cursor store described by cfg.
func Open(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	storeCfg := kvstore.DefaultConfig(cfg.IndexPath())
	storeCfg.Logger = logging.NewComponentLogger(logger, "badger")
	storeCfg.GCInterval = time.Duration(cfg.Index.GCIntervalMinutes) * time.Minute
	store, err := kvstore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	state, err := syncstate.Open(cfg.StatePath())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open sync state: %w", err)
	}
	client := upstream.New(upstream.ConfigFrom(cfg), upstream.WithLogger(logger))
	index := identity.New(store, identity.WithBatchSize(cfg.Index.BatchSize))

	svc := New(cfg, index, state, client, logger)
	svc.closers = append(svc.closers, state.Close, store.Close)
	return svc, nil
}

// Close stops background syncs and closes owned stores.
func (s *Service) Close() error {
	s.sync.Stop()
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Index returns the identity index for bulk writers.
func (s *Service) Index() *identity.Index { return s.index }

// Synchronizer returns the incremental synchronizer.
func (s *Service) Synchronizer() *updater.Synchronizer { return s.sync }

// ResetStale clears running flags a crashed process left in the cursor store.
func (s *Service) ResetStale(ctx context.Context) (int64, error) {
	return s.state.ResetStale(ctx)
}

// StartSync launches a background sync of indexType.
func (s *Service) StartSync(ctx context.Context, indexType string) (StartResult, error) {
	return s.sync.Start(ctx, normalizeType(indexType))
}

// RunSync performs a sync of indexType in the foreground.
func (s *Service) RunSync(ctx context.Context, indexType string) (updater.Result, error) {
	return s.sync.Run(ctx, normalizeType(indexType))
}

// SyncStatus reports the state of indexType.
func (s *Service) SyncStatus(ctx context.Context, indexType string) (SyncStatus, error) {
	return s.sync.Status(ctx, normalizeType(indexType))
}

// ResolveBatch plans identifier injections for records.
func (s *Service) ResolveBatch(ctx context.Context, records []*marc.Record, mode enrich.Mode) (enrich.Result, error) {
	return s.resolver.ResolveBatch(ctx, records, mode)
}

// EnrichPage fetches, resolves and renders one upstream bibliographic page.
func (s *Service) EnrichPage(ctx context.Context, query string, mode enrich.Mode) (enrich.Page, error) {
	return s.resolver.EnrichPage(ctx, query, mode)
}

// LookupEntries returns stored entries aligned with ids, nil for a miss.
func (s *Service) LookupEntries(ctx context.Context, ids []string) ([]*authority.Entry, error) {
	return s.resolver.LookupEntries(ctx, ids)
}

// LookupAuthorities returns each id's stored entry together with the
// external ids kept under its translated id.
func (s *Service) LookupAuthorities(ctx context.Context, ids []string) ([]Authority, error) {
	entries, err := s.LookupEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	translated := make([]string, len(ids))
	for i, id := range ids {
		translated[i] = textutil.TranslateID(id)
	}
	external, err := s.index.ExternalIDs(ctx, translated)
	if err != nil {
		return nil, err
	}
	out := make([]Authority, len(ids))
	for i, id := range ids {
		out[i] = Authority{ID: id, Internal: entries[i], External: external[i]}
	}
	return out, nil
}

// LookupBib returns the stored MARCXML of a bibliographic record. The id is
// canonicalized first.
func (s *Service) LookupBib(ctx context.Context, id string) ([]byte, error) {
	canonical := textutil.NormalizeBibID(strings.TrimSpace(id))
	raw, ok, err := s.index.Bib(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "service", "lookup bib", canonical, nil)
	}
	return raw, nil
}

// DescribeBib builds the role-grouped linked-data view of one bibliographic
// record. The record comes from the bib index when it is stored there and
// from the upstream otherwise.
func (s *Service) DescribeBib(ctx context.Context, id string) (enrich.LinkedData, error) {
	canonical := textutil.NormalizeBibID(strings.TrimSpace(id))
	if canonical == "" {
		return enrich.LinkedData{}, services.Wrap(services.ErrValidation, "service", "describe bib", "empty bib id", nil)
	}
	rec, err := s.loadBib(ctx, canonical)
	if err != nil {
		return enrich.LinkedData{}, err
	}
	return s.resolver.Describe(ctx, rec)
}

func (s *Service) loadBib(ctx context.Context, canonical string) (*marc.Record, error) {
	raw, ok, err := s.index.Bib(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if ok {
		page, err := marc.ReadPage(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode stored bib %s: %w", canonical, err)
		}
		if len(page.Records) > 0 {
			return page.Records[0], nil
		}
	}
	if s.up == nil {
		return nil, services.Wrap(services.ErrNotFound, "service", "describe bib", canonical, nil)
	}
	rawURL := strings.TrimRight(s.up.BaseURL(), "/") + "/bibs.marcxml?id=" + url.QueryEscape(canonical)
	page, err := s.up.FetchPage(ctx, rawURL)
	if upstream.StatusCodeOf(err) == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "service", "describe bib", canonical, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bib %s: %w", canonical, err)
	}
	for _, rec := range page.Records {
		if textutil.NormalizeBibID(rec.ControlValue("001")) == canonical {
			return rec, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "service", "describe bib", canonical, nil)
}

// Stats counts the key families of the index.
func (s *Service) Stats(ctx context.Context) (identity.Stats, error) {
	return s.index.Stats(ctx)
}

func normalizeType(indexType string) string {
	return strings.ToLower(strings.TrimSpace(indexType))
}
