// Package syncstate persists incremental sync cursors in SQLite so a restart
// resumes from the last completed window.
package syncstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cursor is the persisted sync state of one index type.
type Cursor struct {
	IndexType      string
	InProgress     bool
	RunID          string
	LastSyncTime   time.Time
	LastStartedAt  time.Time
	LastFinishedAt time.Time
	LastError      string
	LastResult     json.RawMessage
}

// HasSynced reports whether a window has ever completed.
func (c Cursor) HasSynced() bool {
	return !c.LastSyncTime.IsZero()
}

// Store manages cursor persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get returns the cursor for indexType. A type that never ran yields a zero
// cursor with IndexType set.
func (s *Store) Get(ctx context.Context, indexType string) (Cursor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT index_type, in_progress, run_id, last_sync_time,
        last_started_at, last_finished_at, last_error, last_result_json
        FROM sync_cursors WHERE index_type = ?`, indexType)

	var (
		cur                                Cursor
		inProgress                         int
		runID, syncTime, started, finished sql.NullString
		lastErr, lastResult                sql.NullString
	)
	err := row.Scan(&cur.IndexType, &inProgress, &runID, &syncTime, &started, &finished, &lastErr, &lastResult)
	if errors.Is(err, sql.ErrNoRows) {
		return Cursor{IndexType: indexType}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("read cursor %s: %w", indexType, err)
	}
	cur.InProgress = inProgress != 0
	cur.RunID = runID.String
	cur.LastSyncTime = parseTime(syncTime)
	cur.LastStartedAt = parseTime(started)
	cur.LastFinishedAt = parseTime(finished)
	cur.LastError = lastErr.String
	if lastResult.Valid && lastResult.String != "" {
		cur.LastResult = json.RawMessage(lastResult.String)
	}
	return cur, nil
}

// MarkStarted flags indexType as running under runID.
func (s *Store) MarkStarted(ctx context.Context, indexType, runID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sync_cursors (index_type, in_progress, run_id, last_started_at)
        VALUES (?, 1, ?, ?)
        ON CONFLICT(index_type) DO UPDATE SET in_progress = 1, run_id = excluded.run_id,
            last_started_at = excluded.last_started_at`,
		indexType, runID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("mark started %s: %w", indexType, err)
	}
	return nil
}

// MarkCompleted advances the cursor to windowEnd, clears the running flag and
// stores result as JSON.
func (s *Store) MarkCompleted(ctx context.Context, indexType string, windowEnd time.Time, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode sync result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE sync_cursors SET in_progress = 0, last_sync_time = ?,
        last_finished_at = ?, last_error = NULL, last_result_json = ? WHERE index_type = ?`,
		formatTime(windowEnd), formatTime(s.now()), string(encoded), indexType)
	if err != nil {
		return fmt.Errorf("mark completed %s: %w", indexType, err)
	}
	return nil
}

// MarkAborted clears the running flag and records cause without moving the
// cursor.
func (s *Store) MarkAborted(ctx context.Context, indexType string, cause error) error {
	message := "aborted"
	if cause != nil {
		message = cause.Error()
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sync_cursors SET in_progress = 0, last_finished_at = ?,
        last_error = ? WHERE index_type = ?`,
		formatTime(s.now()), message, indexType)
	if err != nil {
		return fmt.Errorf("mark aborted %s: %w", indexType, err)
	}
	return nil
}

// ResetStale clears running flags left behind by a crashed process and returns
// how many cursors were reset.
func (s *Store) ResetStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sync_cursors SET in_progress = 0,
        last_error = 'interrupted: process exited during sync' WHERE in_progress = 1`)
	if err != nil {
		return 0, fmt.Errorf("reset stale cursors: %w", err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
