package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/trace/internal/models"
)

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Insert(context.Background(), []models.IndexRecord{record("a.txt", 0, "alpha", 1, 0)}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	stats, err := s2.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)

	var mode string
	require.NoError(t, s2.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Open(filepath.Join(blocker, "index.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestQueryRanksBySimilarity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{
		record("rules.txt", 0, "password must be 10 characters", 1, 0, 0),
		record("rules.txt", 1, "sessions expire after 15 minutes", 0, 1, 0),
		record("story.md", 0, "user logs in", 0.9, 0.1, 0),
	}))

	hits, err := s.Query(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "rules.txt#0", hits[0].ID)
	assert.Equal(t, "password must be 10 characters", hits[0].Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "story.md#0", hits[1].ID)
}

func TestQueryEmptyAndMismatched(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	hits, err := s.Query(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{record("a.txt", 0, "alpha", 1, 0, 0)}))
	hits, err = s.Query(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits, "records with other dimensions are ignored")
}

func TestReplaceSource(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{
		record("a.txt", 0, "old 0", 1, 0),
		record("a.txt", 1, "old 1", 1, 0),
		record("b.txt", 0, "keep", 0, 1),
	}))

	require.NoError(t, s.ReplaceSource(ctx, "a.txt", []models.IndexRecord{
		record("a.txt", 0, "new 0", 1, 0),
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, map[string]int{"a.txt": 1, "b.txt": 1}, stats.BySource)

	hits, err := s.Query(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new 0", hits[0].Text)
}

func TestReplaceSourceRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{record("a.txt", 0, "old", 1, 0)}))

	err := s.ReplaceSource(ctx, "a.txt", []models.IndexRecord{
		record("a.txt", 0, "new", 1, 0),
		{ID: "a.txt#1", SourceID: "a.txt", ChunkIndex: 1, Text: "no vector"},
	})
	require.Error(t, err)

	hits, err := s.Query(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "old", hits[0].Text)
}

func TestDeleteBySource(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{
		record("a.txt", 0, "a0", 1, 0),
		record("a.txt", 1, "a1", 1, 0),
		record("b.txt", 0, "b0", 0, 1),
	}))

	n, err := s.DeleteBySource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteBySource(ctx, "missing.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sources, err := s.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, sources)
}

func TestStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sources)

	require.NoError(t, s.Insert(ctx, []models.IndexRecord{
		record("b.txt", 0, "b0", 1, 0, 0),
		record("a.txt", 0, "a0", 1, 0, 0),
		record("a.txt", 1, "a1", 1, 0, 0),
	}))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 3, stats.Dimensions)
	assert.Equal(t, []string{"a.txt", "b.txt"}, SourceIDs(stats))
}

func TestLease(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.AcquireLease(ctx, "sync", "run-1", time.Minute))
	require.NoError(t, s.AcquireLease(ctx, "sync", "run-1", time.Minute), "owner may renew")

	err := s.AcquireLease(ctx, "sync", "run-2", time.Minute)
	require.ErrorIs(t, err, ErrLeaseHeld)
	assert.Contains(t, err.Error(), "run-1")

	now = now.Add(2 * time.Minute)
	require.NoError(t, s.AcquireLease(ctx, "sync", "run-2", time.Minute), "expired lease is taken over")

	require.NoError(t, s.ReleaseLease(ctx, "sync", "run-1"), "stale owner release is a no-op")
	require.ErrorIs(t, s.AcquireLease(ctx, "sync", "run-3", time.Minute), ErrLeaseHeld)

	require.NoError(t, s.ReleaseLease(ctx, "sync", "run-2"))
	require.NoError(t, s.AcquireLease(ctx, "sync", "run-3", time.Minute))
}

func TestWaitLeaseGivesUp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLease(ctx, "sync", "holder", time.Hour))

	start := time.Now()
	err := s.WaitLease(ctx, "sync", "waiter", time.Hour, 30*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrLeaseHeld)
	assert.Less(t, time.Since(start), 2*time.Second)
}
