package authority

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"authindex/internal/logging"
)

// DuplicateLog records heading collisions. Every collision goes to the
// combined log; inter-field and intra-field collisions also go to their own
// file so curators can review them separately.
type DuplicateLog struct {
	mu       sync.Mutex
	combined *slog.Logger
	byKind   map[Kind]*slog.Logger
	closers  []io.Closer
	counts   map[Kind]int
}

// OpenDuplicateLog creates the per-run log files under dir:
// {type}-{stamp}-duplicates.log plus duplicates_interfield and
// duplicates_intrafield siblings.
func OpenDuplicateLog(dir, indexType string, startedAt time.Time) (*DuplicateLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create duplicate log dir: %w", err)
	}
	stamp := startedAt.UTC().Format("20060102T150405Z")
	d := &DuplicateLog{byKind: make(map[Kind]*slog.Logger), counts: make(map[Kind]int)}
	open := func(suffix string) (*slog.Logger, error) {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.log", indexType, stamp, suffix))
		logger, closer, err := logging.NewFileLogger(path, "json", "info")
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, closer)
		return logger, nil
	}
	combined, err := open("duplicates")
	if err != nil {
		return nil, err
	}
	inter, err := open("duplicates_" + string(KindInterField))
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	intra, err := open("duplicates_" + string(KindIntraField))
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.combined = combined
	d.byKind[KindInterField] = logging.TeeLogger(combined, inter)
	d.byKind[KindIntraField] = logging.TeeLogger(combined, intra)
	return d, nil
}

// NewDuplicateLog routes collisions to an existing logger. Tests and in-memory
// runs use it instead of per-run files.
func NewDuplicateLog(logger *slog.Logger) *DuplicateLog {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DuplicateLog{
		combined: logger,
		byKind:   map[Kind]*slog.Logger{KindInterField: logger, KindIntraField: logger},
		counts:   make(map[Kind]int),
	}
}

// Record logs one collision. Decisions without a collision are ignored.
func (d *DuplicateLog) Record(normalized string, winner, candidate *Entry, decision Decision) {
	if d == nil || decision.Kind == KindNone || winner == nil || candidate == nil {
		return
	}
	result := "rejected"
	if decision.Accept {
		result = "replaced"
	}
	attrs := logging.DecisionAttrs(string(decision.Kind), result, decision.Reason())
	attrs = append(attrs,
		logging.String("normalized_heading", normalized),
		logging.Int("rule", decision.Rule),
		logging.String("winner_id", winner.NativeID),
		logging.String("winner_tag", winner.HeadingTag),
		logging.String("winner_heading", winner.Heading),
		logging.String("winner_source_id", winner.SourceID),
		logging.String("candidate_id", candidate.NativeID),
		logging.String("candidate_tag", candidate.HeadingTag),
		logging.String("candidate_heading", candidate.Heading),
		logging.String("candidate_source_id", candidate.SourceID),
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[decision.Kind]++
	logger := d.byKind[decision.Kind]
	if logger == nil {
		logger = d.combined
	}
	logger.Info("duplicate heading", logging.Args(attrs...)...)
}

// Count returns how many collisions of kind were recorded.
func (d *DuplicateLog) Count(kind Kind) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}

// Close flushes and closes the log files.
func (d *DuplicateLog) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
