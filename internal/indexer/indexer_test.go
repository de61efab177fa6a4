package indexer_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authindex/internal/config"
	"authindex/internal/identity"
	"authindex/internal/indexer"
	"authindex/internal/indexlock"
	"authindex/internal/marc"
	"authindex/internal/testsupport"
)

func build(t *testing.T, cfg *config.Config, ix *identity.Index, records ...*marc.Record) indexer.Summary {
	t.Helper()
	dump := testsupport.MARCXML(t, records...)
	summary, err := indexer.New(cfg, ix, nil).Build(context.Background(), bytes.NewReader(dump), indexer.Options{Format: "auto"})
	require.NoError(t, err)
	return summary
}

func TestBuildAppliesTagTieBreak(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	summary := build(t, cfg, ix,
		testsupport.AuthorityRecord("a1", "151", "Kraków"),
		testsupport.AuthorityRecord("a2", "130", "Kraków"),
	)
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Rejected)

	winner, err := ix.HeadingWinner(context.Background(), "KRAKÓW")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "a1", winner.NativeID)
	loser, err := ix.Entry(context.Background(), "a2")
	require.NoError(t, err)
	assert.Nil(t, loser, "rejected candidates are never written")
}

func TestBuildSourceIDTieBreakIsOrderSensitive(t *testing.T) {
	ctx := context.Background()
	withSource := func() *marc.Record {
		return testsupport.AuthorityRecord("a1", "100", "Kowalski, Jan", testsupport.WithSourceID("n 123"))
	}
	without := func() *marc.Record {
		return testsupport.AuthorityRecord("a2", "100", "Kowalski, Jan.")
	}

	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	build(t, cfg, ix, withSource(), without())
	winner, err := ix.HeadingWinner(ctx, "KOWALSKI JAN")
	require.NoError(t, err)
	assert.Equal(t, "a1", winner.NativeID)

	cfg = testsupport.NewConfig(t)
	ix = testsupport.OpenIndex(t)
	summary := build(t, cfg, ix, without(), withSource())
	assert.Equal(t, 1, summary.Replaced)
	winner, err = ix.HeadingWinner(ctx, "KOWALSKI JAN")
	require.NoError(t, err)
	assert.Equal(t, "a1", winner.NativeID)
	// The superseded id key stays in place.
	stale, err := ix.Entry(ctx, "a2")
	require.NoError(t, err)
	assert.NotNil(t, stale)
}

func TestBuildSkipsRecordsWithoutHeading(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	summary := build(t, cfg, ix,
		testsupport.AuthorityRecord("a1", "400", "Only a see-from"),
		testsupport.AuthorityRecord("", "100", "No id"),
		testsupport.AuthorityRecord("a3", "150", "Ok"),
	)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Indexed)
}

func TestBuildWritesDuplicateLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	build(t, cfg, ix,
		testsupport.AuthorityRecord("a1", "100", "Same"),
		testsupport.AuthorityRecord("a2", "100", "Same"),
	)
	matches, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "duplicates", "authority-*-duplicates_intrafield.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"candidate_id":"a2"`)
}

func TestBuildResetDropsPreviousEntries(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	build(t, cfg, ix, testsupport.AuthorityRecord("a1", "100", "Old"))

	dump := testsupport.MARCXML(t, testsupport.AuthorityRecord("a2", "100", "New"))
	_, err := indexer.New(cfg, ix, nil).Build(ctx, bytes.NewReader(dump), indexer.Options{Format: "marcxml", Reset: true})
	require.NoError(t, err)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Headings)
}

func TestBuildRefusesWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ix := testsupport.OpenIndex(t)
	lock, err := indexlock.Acquire(cfg.LockPath(config.IndexTypeAuthority))
	require.NoError(t, err)
	defer lock.Release()

	_, err = indexer.New(cfg, ix, nil).Build(context.Background(), bytes.NewReader(nil), indexer.Options{})
	assert.True(t, errors.Is(err, indexer.ErrIndexBusy))
}
