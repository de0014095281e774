package search

import (
	"context"
	"errors"
	"time"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/store"
)

// ErrNotFound indicates the requested entry does not exist in the store.
var ErrNotFound = errors.New("embedding entry not found")

// EmbeddingStore is the durable embedding cache. It exclusively owns the
// persisted entries and the per-repository refresh watermark; callers never
// touch the underlying storage directly.
type EmbeddingStore interface {
	// Upsert writes an entry atomically. If the stored fingerprint for the
	// same (repo, number) key is identical, the call is a no-op returning
	// success; readers never observe a half-written entry.
	Upsert(ctx context.Context, entry Embedding) error

	// Fingerprints bulk-reads current fingerprints for the given issue
	// numbers. Numbers with no entry are absent from the result.
	Fingerprints(ctx context.Context, repo issue.RepoName, numbers []int) (map[int]string, error)

	// Get returns the entry for one issue, or ErrNotFound.
	Get(ctx context.Context, repo issue.RepoName, number int) (Embedding, error)

	// Search scores every open entry of the repository against the query
	// vector by cosine similarity, excluding the given issue number. The
	// result carries raw scores and is unordered; Rank owns ordering.
	Search(ctx context.Context, repo issue.RepoName, query []float64, exclude int) ([]Match, error)

	// MarkClosed flags an entry so reads exclude it. The entry is retained.
	MarkClosed(ctx context.Context, repo issue.RepoName, number int) error

	// Find retrieves entries matching the given options.
	Find(ctx context.Context, options ...store.Option) ([]Embedding, error)

	// RefreshState returns the repository's watermark; zero time if the
	// repository was never refreshed.
	RefreshState(ctx context.Context, repo issue.RepoName) (time.Time, error)

	// SetRefreshState advances the watermark. A timestamp at or before the
	// stored watermark is ignored.
	SetRefreshState(ctx context.Context, repo issue.RepoName, t time.Time) error

	// ResetRefreshState moves the watermark back to the epoch for a forced
	// full refresh.
	ResetRefreshState(ctx context.Context, repo issue.RepoName) error
}
