package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/persistence"
	"github.com/dupdex/dupdex/internal/config"
	"github.com/dupdex/dupdex/internal/testdb"
)

type stubSource struct {
	mu     sync.Mutex
	issues []issue.Issue
	err    error
	calls  []time.Time
	block  chan struct{}
}

func (s *stubSource) ListUpdatedSince(ctx context.Context, _ issue.RepoName, since time.Time) ([]issue.Issue, error) {
	s.mu.Lock()
	s.calls = append(s.calls, since)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.issues, nil
}

type stubEmbedder struct {
	mu     sync.Mutex
	count  int
	failOn map[string]bool

	// cancelOn aborts the refresh mid-flight when the matching canonical
	// text is embedded, simulating a caller hanging up.
	cancelOn string
	cancel   context.CancelFunc
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		if e.cancelOn != "" && text == e.cancelOn {
			e.cancel()
			return nil, ctx.Err()
		}
		if e.failOn[text] {
			return nil, errors.New("embedding backend error")
		}
		e.count++
		vectors = append(vectors, []float64{1, 0, 0})
	}
	return vectors, nil
}

func (e *stubEmbedder) embedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func testRepo(t *testing.T) issue.RepoName {
	t.Helper()
	repo, err := issue.ParseRepo("acme/widgets")
	require.NoError(t, err)
	return repo
}

func testIssue(t *testing.T, number int, title string, state issue.State, updatedAt time.Time) issue.Issue {
	t.Helper()
	return issue.NewIssue(testRepo(t), number, title, "body of "+title, nil, state, updatedAt)
}

func newRefreshFixture(t *testing.T, src *stubSource, emb *stubEmbedder) (*service.RefreshService, *persistence.SQLiteEmbeddingStore) {
	t.Helper()
	store := persistence.NewSQLiteEmbeddingStore(testdb.New(t), nil)
	svc := service.NewRefreshService(src, store, emb, config.NewRefreshConfig(
		config.WithParallelism(2),
		config.WithBatchSize(2),
	), nil)
	return svc, store
}

func TestRefreshEmbedsNewIssues(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour)),
		testIssue(t, 3, "third", issue.StateOpen, base.Add(2*time.Hour)),
	}}
	emb := &stubEmbedder{}
	svc, store := newRefreshFixture(t, src, emb)

	result, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed())
	assert.Equal(t, 0, result.Failed())
	assert.Equal(t, 3, emb.embedCount())

	// Watermark lands on the newest issue's timestamp.
	wm, err := store.RefreshState(ctx, testRepo(t))
	require.NoError(t, err)
	assert.True(t, wm.Equal(base.Add(2*time.Hour)))

	// The first call fetched the full corpus.
	assert.True(t, src.calls[0].IsZero())
}

func TestRefreshSkipsUnchangedFingerprints(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour)),
	}}
	emb := &stubEmbedder{}
	svc, _ := newRefreshFixture(t, src, emb)

	_, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	require.Equal(t, 2, emb.embedCount())

	// Same content again: nothing is re-embedded.
	result, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed())
	assert.Equal(t, 2, emb.embedCount())

	// The second call used the stored watermark.
	assert.True(t, src.calls[1].Equal(base.Add(time.Hour)))
}

func TestRefreshForceReembedsEverything(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour)),
	}}
	emb := &stubEmbedder{}
	svc, _ := newRefreshFixture(t, src, emb)

	_, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	require.Equal(t, 2, emb.embedCount())

	result, err := svc.Refresh(ctx, "acme/widgets", true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed())
	assert.Equal(t, 4, emb.embedCount())

	// Force resets the watermark before fetching.
	assert.True(t, src.calls[1].IsZero())
}

func TestRefreshCountsPerIssueFailures(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	bad := testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour))
	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		bad,
		testIssue(t, 3, "third", issue.StateOpen, base.Add(2*time.Hour)),
	}}
	emb := &stubEmbedder{failOn: map[string]bool{issue.CanonicalText(bad): true}}
	svc, store := newRefreshFixture(t, src, emb)

	result, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed())
	assert.Equal(t, 1, result.Failed())

	// The failed issue is absent; the next refresh retries it.
	_, err = store.Get(ctx, testRepo(t), 2)
	assert.ErrorIs(t, err, search.ErrNotFound)
}

func TestRefreshMarksClosedIssues(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour)),
	}}
	emb := &stubEmbedder{}
	svc, store := newRefreshFixture(t, src, emb)

	_, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)

	// Issue 2 closes inside the next window.
	src.mu.Lock()
	src.issues = []issue.Issue{testIssue(t, 2, "second", issue.StateClosed, base.Add(2*time.Hour))}
	src.mu.Unlock()

	result, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed())

	got, err := store.Get(ctx, testRepo(t), 2)
	require.NoError(t, err)
	assert.Equal(t, issue.StateClosed, got.State())
}

func TestRefreshRejectsConcurrentSameRepo(t *testing.T) {
	ctx := context.Background()

	block := make(chan struct{})
	src := &stubSource{block: block}
	svc, _ := newRefreshFixture(t, src, &stubEmbedder{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(ctx, "acme/widgets", false)
		done <- err
	}()

	// Wait until the first refresh holds the repository slot.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.calls) == 1
	}, time.Second, time.Millisecond)

	_, err := svc.Refresh(ctx, "acme/widgets", false)
	assert.ErrorIs(t, err, service.ErrRefreshInProgress)

	close(block)
	require.NoError(t, <-done)

	// After the first finishes, the slot is free again.
	_, err = svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)
}

func TestRefreshSourceFailureLeavesWatermarkUntouched(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
	}}
	svc, store := newRefreshFixture(t, src, &stubEmbedder{})

	_, err := svc.Refresh(ctx, "acme/widgets", false)
	require.NoError(t, err)

	src.mu.Lock()
	src.err = errors.New("tracker down")
	src.mu.Unlock()

	_, err = svc.Refresh(ctx, "acme/widgets", false)
	assert.ErrorIs(t, err, service.ErrSourceUnavailable)

	wm, err := store.RefreshState(ctx, testRepo(t))
	require.NoError(t, err)
	assert.True(t, wm.Equal(base))
}

func TestRefreshCancelKeepsCompletedBatchWatermark(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	third := testIssue(t, 3, "third", issue.StateOpen, base.Add(2*time.Hour))
	src := &stubSource{issues: []issue.Issue{
		testIssue(t, 1, "first", issue.StateOpen, base),
		testIssue(t, 2, "second", issue.StateOpen, base.Add(time.Hour)),
		third,
		testIssue(t, 4, "fourth", issue.StateOpen, base.Add(3*time.Hour)),
	}}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	emb := &stubEmbedder{cancelOn: issue.CanonicalText(third), cancel: cancel}

	store := persistence.NewSQLiteEmbeddingStore(testdb.New(t), nil)
	svc := service.NewRefreshService(src, store, emb, config.NewRefreshConfig(
		config.WithParallelism(1),
		config.WithBatchSize(2),
	), nil)

	result, err := svc.Refresh(runCtx, "acme/widgets", false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Processed())

	// The first batch's entries survive the cancellation.
	for _, number := range []int{1, 2} {
		_, getErr := store.Get(ctx, testRepo(t), number)
		require.NoError(t, getErr)
	}
	_, getErr := store.Get(ctx, testRepo(t), 3)
	assert.ErrorIs(t, getErr, search.ErrNotFound)

	// The watermark stopped at the last completed batch boundary, so the
	// next refresh re-fetches everything after issue 2.
	wm, err := store.RefreshState(ctx, testRepo(t))
	require.NoError(t, err)
	assert.True(t, wm.Equal(base.Add(time.Hour)))
}

func TestRefreshInvalidRepository(t *testing.T) {
	svc, _ := newRefreshFixture(t, &stubSource{}, &stubEmbedder{})

	_, err := svc.Refresh(context.Background(), "not-a-repo", false)
	assert.ErrorIs(t, err, service.ErrInvalidRepository)
}

func TestRefreshEmptyWindowSucceeds(t *testing.T) {
	svc, _ := newRefreshFixture(t, &stubSource{}, &stubEmbedder{})

	result, err := svc.Refresh(context.Background(), "acme/widgets", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed())
	assert.Equal(t, 0, result.Failed())
}
