// Package indexer builds the authority identity index from a full offline
// dump of authority records.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"authindex/internal/authority"
	"authindex/internal/config"
	"authindex/internal/identity"
	"authindex/internal/indexlock"
	"authindex/internal/logging"
	"authindex/internal/marc"
	"authindex/internal/metrics"
)

// ErrIndexBusy reports that a sync or another build holds the authority lock.
var ErrIndexBusy = indexlock.ErrBusy

// Summary reports what a build did.
type Summary struct {
	Records    int           `json:"records"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Replaced   int           `json:"replaced"`
	Rejected   int           `json:"rejected"`
	Duration   time.Duration `json:"duration"`
}

// Options tune a build.
type Options struct {
	// Format is marcxml, iso2709 or auto.
	Format string
	// Reset drops the id and heading families before loading.
	Reset bool
}

// Indexer loads authority dumps into an identity index.
type Indexer struct {
	index     *identity.Index
	extractor *authority.Extractor
	policy    authority.Policy
	batchSize int
	lockPath  string
	dupDir    string
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an indexer from configuration.
func New(cfg *config.Config, index *identity.Index, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Indexer{
		index:     index,
		extractor: authority.NewExtractor(cfg.Index.HeadingTags),
		policy:    authority.NewPolicy(cfg.Index.HeadingTags),
		batchSize: cfg.Index.BatchSize,
		lockPath:  cfg.LockPath(config.IndexTypeAuthority),
		dupDir:    filepath.Join(cfg.Paths.LogDir, "duplicates"),
		logger:    logging.NewComponentLogger(logger, "indexer"),
		now:       time.Now,
	}
}

// Build reads src and writes one winner per normalized heading. Every accepted
// candidate is written under both keys; a later replacement overwrites the
// heading key and leaves the superseded id key in place.
func (x *Indexer) Build(ctx context.Context, src io.Reader, opts Options) (Summary, error) {
	started := x.now()
	lock, err := indexlock.Acquire(x.lockPath)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			x.logger.Warn("index lock release failed", logging.Error(err))
		}
	}()

	reader, err := marc.NewReader(src, opts.Format, marc.WithLogger(x.logger))
	if err != nil {
		return Summary{}, err
	}
	dups, err := authority.OpenDuplicateLog(x.dupDir, config.IndexTypeAuthority, started)
	if err != nil {
		return Summary{}, fmt.Errorf("open duplicate logs: %w", err)
	}
	defer dups.Close()

	if opts.Reset {
		for _, prefix := range []string{identity.PrefixID, identity.PrefixHeading} {
			if err := x.index.Store().DropPrefix(ctx, prefix); err != nil {
				return Summary{}, fmt.Errorf("reset index: %w", err)
			}
		}
	}

	x.logger.Info("authority index build started",
		logging.String(logging.FieldEventType, "index_build_started"),
		logging.String("format", opts.Format),
		logging.Bool("reset", opts.Reset),
	)

	var summary Summary
	winners := make(map[string]*authority.Entry)
	writer := x.index.NewWriter(x.batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read record %d: %w", summary.Records+1, err)
		}
		summary.Records++

		candidate, err := x.extractor.Extract(rec)
		if err != nil {
			summary.Skipped++
			metrics.RecordIndexRecord("skipped")
			x.logger.Debug("record skipped",
				logging.Int("record", summary.Records),
				logging.String("native_id", rec.ControlValue("001")),
				logging.Error(err),
			)
			continue
		}

		key := candidate.NormalizedHeading()
		winner := winners[key]
		decision := x.policy.Decide(winner, candidate)
		if winner != nil {
			summary.Duplicates++
			if decision.Accept {
				summary.Replaced++
			} else {
				summary.Rejected++
			}
			dups.Record(key, winner, candidate, decision)
			metrics.RecordDuplicate(string(decision.Kind), decision.Accept)
		}
		if !decision.Accept {
			metrics.RecordIndexRecord("rejected")
			continue
		}
		winners[key] = candidate
		metrics.RecordIndexRecord("accepted")
		if err := writer.Put(ctx, candidate); err != nil {
			return summary, fmt.Errorf("write entry %s: %w", candidate.NativeID, err)
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return summary, fmt.Errorf("flush entries: %w", err)
	}
	if iso, ok := reader.(*marc.ISO2709Reader); ok {
		summary.Skipped += iso.Skipped()
	}

	summary.Indexed = len(winners)
	summary.Duration = x.now().Sub(started)
	x.logger.Info("authority index build completed",
		logging.String(logging.FieldEventType, "index_build_completed"),
		logging.Int("records", summary.Records),
		logging.Int("indexed", summary.Indexed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("replaced", summary.Replaced),
		logging.Int("rejected", summary.Rejected),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}
