package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"authindex/internal/authority"
	"authindex/internal/config"
	"authindex/internal/identity"
	"authindex/internal/indexlock"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/metrics"
	"authindex/internal/services"
	"authindex/internal/syncstate"
	"authindex/internal/upstream"
)

// ErrBusy reports that a sync for the index type is already running.
var ErrBusy = fmt.Errorf("%w: sync already in progress", services.ErrBusy)

// Feed is the subset of the upstream client a sync needs.
type Feed interface {
	HealthCheck(ctx context.Context) error
	UpdatedRecords(ctx context.Context, resource string, window upstream.Window, fn func(marc.Page) error) error
	DeletedIDs(ctx context.Context, resource string, window upstream.Window, fn func(ids []string) error) error
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(s *Synchronizer) {
		if next != nil {
			s.newRunID = next
		}
	}
}

// Synchronizer runs incremental syncs, at most one per index type at a time.
type Synchronizer struct {
	cfg       *config.Config
	index     *identity.Index
	feed      Feed
	state     *syncstate.Store
	logger    *slog.Logger
	extractor *authority.Extractor
	policy    authority.Policy

	running  map[string]*atomic.Bool
	now      func() time.Time
	newRunID func() string

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a synchronizer for the configured index types.
func New(cfg *config.Config, index *identity.Index, feed Feed, state *syncstate.Store, logger *slog.Logger, opts ...Option) *Synchronizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Synchronizer{
		cfg:       cfg,
		index:     index,
		feed:      feed,
		state:     state,
		logger:    logging.NewComponentLogger(logger, "updater"),
		extractor: authority.NewExtractor(cfg.Index.HeadingTags),
		policy:    authority.NewPolicy(cfg.Index.HeadingTags),
		running: map[string]*atomic.Bool{
			config.IndexTypeAuthority:     {},
			config.IndexTypeBibliographic: {},
		},
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	return s
}

// Stop cancels background runs and waits for them to finish.
func (s *Synchronizer) Stop() {
	s.bgCancel()
	s.wg.Wait()
}

// Wait blocks until background runs started so far have finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

func (s *Synchronizer) flag(indexType string) (*atomic.Bool, error) {
	flag, ok := s.running[indexType]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "updater", "sync", fmt.Sprintf("unknown index type %q", indexType), nil)
	}
	return flag, nil
}

// claim performs the Idle → Running transition: busy check, health check,
// flag CAS and the cross-process lock. On success the caller owns both.
func (s *Synchronizer) claim(ctx context.Context, indexType string) (*atomic.Bool, *indexlock.Lock, error) {
	flag, err := s.flag(indexType)
	if err != nil {
		return nil, nil, err
	}
	if flag.Load() {
		return nil, nil, ErrBusy
	}
	if err := s.feed.HealthCheck(ctx); err != nil {
		logging.WarnWithContext(s.logger, "upstream health check failed; sync not started", "sync_health_failed",
			logging.String(logging.FieldIndexType, indexType),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check upstream.base_url and upstream.health_url"),
			logging.String(logging.FieldImpact, "index stays at its previous state until the next sync"),
		)
		return nil, nil, err
	}
	if !flag.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	lock, err := indexlock.Acquire(s.cfg.LockPath(indexType))
	if err != nil {
		flag.Store(false)
		if errors.Is(err, indexlock.ErrBusy) {
			return nil, nil, ErrBusy
		}
		return nil, nil, err
	}
	return flag, lock, nil
}

// Start launches a background sync and returns immediately. A running type
// reports Busy with its current status; an unhealthy upstream returns an
// error wrapping services.ErrUpstreamUnavailable.
func (s *Synchronizer) Start(ctx context.Context, indexType string) (StartResult, error) {
	flag, lock, err := s.claim(ctx, indexType)
	if errors.Is(err, ErrBusy) {
		status, statusErr := s.Status(ctx, indexType)
		if statusErr != nil {
			return StartResult{Busy: true}, statusErr
		}
		return StartResult{Busy: true, Status: status}, nil
	}
	if err != nil {
		return StartResult{}, err
	}

	runID := s.newRunID()
	runCtx := services.WithRequestID(s.bgCtx, requestID(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer flag.Store(false)
		defer s.release(lock)
		if _, err := s.execute(runCtx, indexType, runID); err != nil {
			s.logger.Debug("background sync ended with error", logging.String(logging.FieldRunID, runID), logging.Error(err))
		}
	}()

	status, err := s.Status(ctx, indexType)
	if err != nil {
		return StartResult{Accepted: true, RunID: runID}, nil
	}
	status.InProgress = true
	return StartResult{Accepted: true, RunID: runID, Status: status}, nil
}

// Run performs a sync synchronously.
func (s *Synchronizer) Run(ctx context.Context, indexType string) (Result, error) {
	flag, lock, err := s.claim(ctx, indexType)
	if err != nil {
		return Result{}, err
	}
	defer flag.Store(false)
	defer s.release(lock)
	return s.execute(ctx, indexType, s.newRunID())
}

// Status reports the persisted cursor combined with the in-memory flag.
func (s *Synchronizer) Status(ctx context.Context, indexType string) (Status, error) {
	flag, err := s.flag(indexType)
	if err != nil {
		return Status{}, err
	}
	cur, err := s.state.Get(ctx, indexType)
	if err != nil {
		return Status{}, err
	}
	return Status{
		IndexType:      indexType,
		InProgress:     flag.Load() || cur.InProgress,
		RunID:          cur.RunID,
		LastSyncTime:   cur.LastSyncTime,
		LastStartedAt:  cur.LastStartedAt,
		LastFinishedAt: cur.LastFinishedAt,
		LastError:      cur.LastError,
		LastResult:     cur.LastResult,
	}, nil
}

func (s *Synchronizer) release(lock *indexlock.Lock) {
	if err := lock.Release(); err != nil {
		s.logger.Warn("index lock release failed", logging.Error(err))
	}
}

func (s *Synchronizer) execute(ctx context.Context, indexType, runID string) (Result, error) {
	resource, err := upstream.ResourceFor(indexType)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithIndexType(ctx, indexType)
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, s.logger)

	cur, err := s.state.Get(ctx, indexType)
	if err != nil {
		return Result{}, err
	}
	now := s.now().UTC()
	last := cur.LastSyncTime
	if last.IsZero() {
		last = now
	}
	window := upstream.Window{From: last.Add(-s.cfg.SyncOverlap()), To: now}
	result := Result{IndexType: indexType, RunID: runID, WindowFrom: window.From, WindowTo: window.To}

	if err := s.state.MarkStarted(ctx, indexType, runID); err != nil {
		return result, err
	}
	metrics.RecordSyncStarted(indexType)
	logger.Info("sync started",
		logging.String(logging.FieldEventType, "sync_started"),
		logging.String("window", window.String()),
	)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout())
	defer cancel()

	err = s.runPhases(runCtx, indexType, resource, window, &result, logger)
	result.Duration = s.now().Sub(now)
	// Persist the outcome even when the run context expired.
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, "updater", "sync", "sync timeout exceeded", err)
		}
		if markErr := s.state.MarkAborted(persistCtx, indexType, err); markErr != nil {
			logger.Error("failed to record aborted sync", logging.Error(markErr))
		}
		metrics.RecordSyncFinished(indexType, "aborted", result.Duration.Seconds())
		logging.ErrorWithContext(logger, "sync aborted; cursor unchanged", "sync_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next sync retries the same window"),
		)
		return result, err
	}
	if err := s.state.MarkCompleted(persistCtx, indexType, window.To, result); err != nil {
		metrics.RecordSyncFinished(indexType, "aborted", result.Duration.Seconds())
		return result, err
	}
	metrics.RecordSyncFinished(indexType, "completed", result.Duration.Seconds())
	logger.Info("sync completed",
		logging.String(logging.FieldEventType, "sync_completed"),
		logging.Int("records", result.Records),
		logging.Int("added", result.Added),
		logging.Int("updated", result.Updated),
		logging.Int("renamed", result.Renamed),
		logging.Int("rejected", result.Rejected),
		logging.Int("deleted", result.Deleted),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (s *Synchronizer) runPhases(ctx context.Context, indexType, resource string, window upstream.Window, result *Result, logger *slog.Logger) error {
	switch indexType {
	case config.IndexTypeAuthority:
		dups, err := authority.OpenDuplicateLog(filepath.Join(s.cfg.Paths.LogDir, "duplicates"), indexType+"-sync", s.now())
		if err != nil {
			return fmt.Errorf("open duplicate logs: %w", err)
		}
		defer dups.Close()
		a := &authoritySync{ctx: ctx, s: s, dups: dups, result: result, logger: logger}
		if err := s.feed.UpdatedRecords(ctx, resource, window, a.applyPage); err != nil {
			return fmt.Errorf("update phase: %w", err)
		}
		if err := s.feed.DeletedIDs(ctx, resource, window, a.deleteIDs); err != nil {
			return fmt.Errorf("deletion phase: %w", err)
		}
	case config.IndexTypeBibliographic:
		b := &bibSync{ctx: ctx, s: s, result: result, logger: logger}
		if err := s.feed.UpdatedRecords(ctx, resource, window, b.applyPage); err != nil {
			return fmt.Errorf("update phase: %w", err)
		}
		if err := s.feed.DeletedIDs(ctx, resource, window, b.deleteIDs); err != nil {
			return fmt.Errorf("deletion phase: %w", err)
		}
	}
	return nil
}

func requestID(ctx context.Context) string {
	id, _ := services.RequestIDFromContext(ctx)
	return id
}
