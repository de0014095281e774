package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/persistence"
	"github.com/dupdex/dupdex/internal/testdb"
)

func newDuplicateFixture(t *testing.T, threshold float64) (*service.DuplicateService, *persistence.SQLiteEmbeddingStore) {
	t.Helper()
	store := persistence.NewSQLiteEmbeddingStore(testdb.New(t), nil)
	return service.NewDuplicateService(store, threshold, nil), store
}

func seedEntry(t *testing.T, store *persistence.SQLiteEmbeddingStore, number int, title string, vector []float64, state issue.State) {
	t.Helper()
	entry := search.NewEmbedding(testRepo(t), number, title, "fp-"+title, vector, state, time.Now().UTC())
	require.NoError(t, store.Upsert(context.Background(), entry))
}

func TestFindRanksMatchesAboveThreshold(t *testing.T) {
	ctx := context.Background()
	svc, store := newDuplicateFixture(t, 0.9)

	seedEntry(t, store, 1, "target", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 2, "identical", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 3, "close", []float64{0.95, 0.3122}, issue.StateOpen)
	seedEntry(t, store, 4, "unrelated", []float64{0, 1}, issue.StateOpen)

	report, err := svc.Find(ctx, "acme/widgets", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Number())
	matches := report.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].Number())
	assert.InDelta(t, 1.0, matches[0].Score(), 1e-9)
	assert.Equal(t, 3, matches[1].Number())
	assert.Greater(t, matches[0].Score(), matches[1].Score())
}

func TestFindTiesBreakByIssueNumber(t *testing.T) {
	ctx := context.Background()
	svc, store := newDuplicateFixture(t, 0.5)

	seedEntry(t, store, 10, "target", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 7, "b", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 3, "a", []float64{1, 0}, issue.StateOpen)

	report, err := svc.Find(ctx, "acme/widgets", 10)
	require.NoError(t, err)

	matches := report.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, 3, matches[0].Number())
	assert.Equal(t, 7, matches[1].Number())
}

func TestFindExcludesClosedAndTarget(t *testing.T) {
	ctx := context.Background()
	svc, store := newDuplicateFixture(t, 0.5)

	seedEntry(t, store, 1, "target", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 2, "closed twin", []float64{1, 0}, issue.StateClosed)

	report, err := svc.Find(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Empty(t, report.Matches())
}

func TestFindThresholdOverride(t *testing.T) {
	ctx := context.Background()
	svc, store := newDuplicateFixture(t, 0.99)

	seedEntry(t, store, 1, "target", []float64{1, 0}, issue.StateOpen)
	seedEntry(t, store, 2, "close", []float64{0.95, 0.3122}, issue.StateOpen)

	// Excluded under the default threshold.
	report, err := svc.Find(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Empty(t, report.Matches())

	// Included when the caller lowers it.
	report, err = svc.Find(ctx, "acme/widgets", 1, service.WithThreshold(0.9))
	require.NoError(t, err)
	assert.Len(t, report.Matches(), 1)
}

func TestFindNotIndexed(t *testing.T) {
	svc, _ := newDuplicateFixture(t, 0.9)

	_, err := svc.Find(context.Background(), "acme/widgets", 42)
	assert.ErrorIs(t, err, service.ErrNotIndexed)
}

func TestFindInvalidArguments(t *testing.T) {
	svc, store := newDuplicateFixture(t, 0.9)
	seedEntry(t, store, 1, "target", []float64{1, 0}, issue.StateOpen)

	_, err := svc.Find(context.Background(), "nonsense", 1)
	assert.ErrorIs(t, err, service.ErrInvalidRepository)

	_, err = svc.Find(context.Background(), "acme/widgets", 1, service.WithThreshold(1.5))
	assert.ErrorIs(t, err, service.ErrInvalidThreshold)

	_, err = svc.Find(context.Background(), "acme/widgets", 1, service.WithThreshold(-0.1))
	assert.ErrorIs(t, err, service.ErrInvalidThreshold)
}
