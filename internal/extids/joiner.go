// Package extids joins scored candidate tables from external authority
// matching runs into the external identifier map of the identity index.
package extids

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"authindex/internal/config"
	"authindex/internal/identity"
	"authindex/internal/logging"
	"authindex/internal/services"
	"authindex/internal/textutil"
)

// Map is translatedId → {key: value}.
type Map map[string]map[string]string

// SourceSummary reports what one candidate table contributed.
type SourceSummary struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Rows     int    `json:"rows"`
	Entities int    `json:"entities"`
}

// Summary reports a join run.
type Summary struct {
	Sources  []SourceSummary `json:"sources"`
	Entities int             `json:"entities"`
	Written  int             `json:"written"`
	Duration time.Duration   `json:"duration"`
}

// Joiner builds and publishes the external identifier map.
type Joiner struct {
	sources []config.ExternalSource
	index   *identity.Index
	logger  *slog.Logger
}

// New returns a joiner over the configured sources.
func New(cfg *config.Config, index *identity.Index, logger *slog.Logger) *Joiner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Joiner{
		sources: append([]config.ExternalSource(nil), cfg.ExternalIDs.Sources...),
		index:   index,
		logger:  logging.NewComponentLogger(logger, "extids"),
	}
}

type candidate struct {
	value string
	score float64
}

// Build reads every source and merges the best candidate per entity and
// source. Sources sharing a key overwrite each other in configuration order.
func (j *Joiner) Build(ctx context.Context) (Map, error) {
	m, _, err := j.build(ctx)
	return m, err
}

func (j *Joiner) build(ctx context.Context) (Map, []SourceSummary, error) {
	if len(j.sources) == 0 {
		return nil, nil, services.Wrap(services.ErrConfiguration, "extids", "build", "no external_ids.sources configured", nil)
	}
	merged := make(Map)
	summaries := make([]SourceSummary, 0, len(j.sources))
	for _, src := range j.sources {
		best, rows, err := j.readSource(ctx, src)
		if err != nil {
			return nil, nil, err
		}
		for entity, cand := range best {
			key := textutil.TranslateID(entity)
			fields, ok := merged[key]
			if !ok {
				fields = make(map[string]string, 1)
				merged[key] = fields
			}
			fields[src.Key] = cand.value
		}
		summaries = append(summaries, SourceSummary{Name: src.Name, Key: src.Key, Rows: rows, Entities: len(best)})
		j.logger.Info("external id source read",
			logging.String("source", src.Name),
			logging.String("key", src.Key),
			logging.Int("rows", rows),
			logging.Int("entities", len(best)),
		)
	}
	return merged, summaries, nil
}

// readSource keeps, per entity, the last row whose score is at least the
// kept score.
func (j *Joiner) readSource(ctx context.Context, src config.ExternalSource) (map[string]candidate, int, error) {
	if _, err := os.Stat(src.Database); err != nil {
		return nil, 0, services.Wrap(services.ErrConfiguration, "extids", "open source", src.Name, err)
	}
	db, err := sql.Open("sqlite", src.Database)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", src.Database, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, src.Query)
	if err != nil {
		return nil, 0, fmt.Errorf("query source %s: %w", src.Name, err)
	}
	defer rows.Close()

	best := make(map[string]candidate)
	count := 0
	for rows.Next() {
		var (
			entity, external sql.NullString
			score, maxScore  sql.NullFloat64
		)
		if err := rows.Scan(&entity, &external, &score, &maxScore); err != nil {
			return nil, 0, fmt.Errorf("scan source %s: %w", src.Name, err)
		}
		count++
		if !entity.Valid || entity.String == "" || !external.Valid || external.String == "" {
			continue
		}
		kept, ok := best[entity.String]
		if ok && score.Float64 < kept.score {
			continue
		}
		best[entity.String] = candidate{value: Format(src.Format, external.String), score: score.Float64}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read source %s: %w", src.Name, err)
	}
	return best, count, nil
}

// Publish replaces the external identifier family of the index with m.
func (j *Joiner) Publish(ctx context.Context, m Map) (int, error) {
	return j.index.ReplaceExternalIDs(ctx, m)
}

// Run builds and publishes in one step.
func (j *Joiner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	m, sources, err := j.build(ctx)
	if err != nil {
		return Summary{}, err
	}
	written, err := j.Publish(ctx, m)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Sources: sources, Entities: len(m), Written: written, Duration: time.Since(started)}
	j.logger.Info("external id map published",
		logging.String(logging.FieldEventType, "extids_published"),
		logging.Int("entities", summary.Entities),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}
