package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/persistence"
	"github.com/dupdex/dupdex/internal/testdb"
)

func testStore(t *testing.T) *persistence.SQLiteEmbeddingStore {
	t.Helper()
	return persistence.NewSQLiteEmbeddingStore(testdb.New(t), nil)
}

func repoName(t *testing.T, name string) issue.RepoName {
	t.Helper()
	repo, err := issue.ParseRepo(name)
	require.NoError(t, err)
	return repo
}

func entry(t *testing.T, repo string, number int, fingerprint string, vector []float64, state issue.State) search.Embedding {
	t.Helper()
	return search.NewEmbedding(repoName(t, repo), number, "title", fingerprint, vector, state, time.Now().UTC())
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	e := entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)
	require.NoError(t, s.Upsert(ctx, e))

	got, err := s.Get(ctx, repo, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number())
	assert.Equal(t, "fp-1", got.Fingerprint())
	assert.Equal(t, []float64{1, 0}, got.Vector())
	assert.Equal(t, issue.StateOpen, got.State())
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(context.Background(), repoName(t, "acme/widgets"), 999)
	assert.ErrorIs(t, err, search.ErrNotFound)
}

func TestUpsertSameFingerprintIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	first := entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)
	require.NoError(t, s.Upsert(ctx, first))

	// Same fingerprint with a different vector must not rewrite the row.
	same := entry(t, "acme/widgets", 1, "fp-1", []float64{0, 1}, issue.StateOpen)
	require.NoError(t, s.Upsert(ctx, same))

	got, err := s.Get(ctx, repo, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got.Vector())
}

func TestUpsertChangedFingerprintRewrites(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)))
	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 1, "fp-2", []float64{0, 1}, issue.StateOpen)))

	got, err := s.Get(ctx, repo, 1)
	require.NoError(t, err)
	assert.Equal(t, "fp-2", got.Fingerprint())
	assert.Equal(t, []float64{0, 1}, got.Vector())
}

func TestFingerprints(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)))
	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 2, "fp-2", []float64{0, 1}, issue.StateOpen)))

	fps, err := s.Fingerprints(ctx, repo, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "fp-1", 2: "fp-2"}, fps)

	empty, err := s.Fingerprints(ctx, repo, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchFiltersStateAndExcludesTarget(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)))
	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 2, "fp-2", []float64{1, 0}, issue.StateOpen)))
	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 3, "fp-3", []float64{1, 0}, issue.StateClosed)))
	require.NoError(t, s.Upsert(ctx, entry(t, "other/repo", 4, "fp-4", []float64{1, 0}, issue.StateOpen)))

	matches, err := s.Search(ctx, repo, []float64{1, 0}, 1)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Number())
	assert.InDelta(t, 1.0, matches[0].Score(), 1e-9)
}

func TestMarkClosed(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 1, "fp-1", []float64{1, 0}, issue.StateOpen)))
	require.NoError(t, s.Upsert(ctx, entry(t, "acme/widgets", 2, "fp-2", []float64{1, 0}, issue.StateOpen)))

	require.NoError(t, s.MarkClosed(ctx, repo, 2))

	// The entry is retained but excluded from search.
	got, err := s.Get(ctx, repo, 2)
	require.NoError(t, err)
	assert.Equal(t, issue.StateClosed, got.State())

	matches, err := s.Search(ctx, repo, []float64{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Number())

	// Marking an uncached issue is a no-op.
	require.NoError(t, s.MarkClosed(ctx, repo, 999))
}

func TestRefreshStateWatermark(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	wm, err := s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SetRefreshState(ctx, repo, t1))
	wm, err = s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t1))

	// Advancing works.
	require.NoError(t, s.SetRefreshState(ctx, repo, t2))
	wm, err = s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t2))

	// Regression attempts are ignored.
	require.NoError(t, s.SetRefreshState(ctx, repo, t1))
	wm, err = s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t2))
}

func TestResetRefreshState(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	repo := repoName(t, "acme/widgets")

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetRefreshState(ctx, repo, t1))

	require.NoError(t, s.ResetRefreshState(ctx, repo))

	wm, err := s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	// The watermark can move backwards after an explicit reset.
	t0 := t1.Add(-24 * time.Hour)
	require.NoError(t, s.SetRefreshState(ctx, repo, t0))
	wm, err = s.RefreshState(ctx, repo)
	require.NoError(t, err)
	assert.True(t, wm.Equal(t0))
}

func TestWatermarksAreIndependentPerRepo(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetRefreshState(ctx, repoName(t, "acme/widgets"), t1))

	wm, err := s.RefreshState(ctx, repoName(t, "acme/gadgets"))
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}
