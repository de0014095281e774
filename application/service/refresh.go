// Package service provides application layer services that orchestrate
// domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/internal/config"
	"github.com/dupdex/dupdex/internal/log"
)

// RefreshResult reports the outcome of one refresh pass.
type RefreshResult struct {
	processed int
	failed    int
}

// Processed returns the number of issues successfully embedded or updated.
func (r RefreshResult) Processed() int { return r.processed }

// Failed returns the number of per-issue failures.
func (r RefreshResult) Failed() int { return r.failed }

// RefreshService synchronizes the embedding cache with the issue tracker,
// one repository at a time. Refreshes for different repositories run
// concurrently; a second refresh for the same repository is rejected while
// the first one holds the repository slot.
type RefreshService struct {
	source   issue.Source
	store    search.EmbeddingStore
	embedder search.Embedder
	cfg      config.RefreshConfig
	logger   *log.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(source issue.Source, store search.EmbeddingStore, embedder search.Embedder, cfg config.RefreshConfig, logger *log.Logger) *RefreshService {
	if logger == nil {
		logger = log.Default()
	}
	return &RefreshService{
		source:   source,
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Refresh incrementally synchronizes one repository's embedding cache.
// With force, the watermark is reset and every open issue is re-embedded
// regardless of its stored fingerprint.
func (s *RefreshService) Refresh(ctx context.Context, repository string, force bool) (RefreshResult, error) {
	repo, err := issue.ParseRepo(repository)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}

	if !s.acquire(repo) {
		return RefreshResult{}, fmt.Errorf("%w: %s", ErrRefreshInProgress, repo.String())
	}
	defer s.release(repo)

	if force {
		if err := s.store.ResetRefreshState(ctx, repo); err != nil {
			return RefreshResult{}, errors.Join(ErrStoreUnavailable, err)
		}
	}

	since, err := s.store.RefreshState(ctx, repo)
	if err != nil {
		return RefreshResult{}, errors.Join(ErrStoreUnavailable, err)
	}

	fetched, err := s.source.ListUpdatedSince(ctx, repo, since)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return RefreshResult{}, err
		}
		return RefreshResult{}, errors.Join(ErrSourceUnavailable, err)
	}

	stale, err := s.partition(ctx, repo, fetched, force)
	if err != nil {
		return RefreshResult{}, errors.Join(ErrStoreUnavailable, err)
	}

	// Oldest first, so every completed batch boundary is a valid watermark:
	// everything modified before it has been seen.
	sort.SliceStable(fetched, func(i, j int) bool {
		return fetched[i].UpdatedAt().Before(fetched[j].UpdatedAt())
	})

	batchSize := max(1, s.cfg.BatchSize())

	var result RefreshResult
	for start := 0; start < len(fetched); start += batchSize {
		end := min(start+batchSize, len(fetched))
		batch := fetched[start:end]

		processed, failed := s.processBatch(ctx, repo, batch, stale)
		result.processed += processed
		result.failed += failed

		if err := ctx.Err(); err != nil {
			// The watermark stays at the last completed batch boundary.
			return result, err
		}

		watermark := batch[len(batch)-1].UpdatedAt()
		if !watermark.IsZero() {
			if err := s.store.SetRefreshState(ctx, repo, watermark); err != nil {
				return result, errors.Join(ErrStoreUnavailable, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "refresh complete",
		"repo", repo.String(),
		"fetched", len(fetched),
		"processed", result.processed,
		"failed", result.failed,
		"force", force,
	)
	return result, nil
}

// partition returns the set of issue numbers whose content must be embedded:
// entries that are new or whose fingerprint changed. With force every open
// issue is stale.
func (s *RefreshService) partition(ctx context.Context, repo issue.RepoName, fetched []issue.Issue, force bool) (map[int]struct{}, error) {
	stale := make(map[int]struct{}, len(fetched))

	if force {
		for _, i := range fetched {
			if i.IsOpen() {
				stale[i.Number()] = struct{}{}
			}
		}
		return stale, nil
	}

	numbers := make([]int, 0, len(fetched))
	for _, i := range fetched {
		if i.IsOpen() {
			numbers = append(numbers, i.Number())
		}
	}

	known, err := s.store.Fingerprints(ctx, repo, numbers)
	if err != nil {
		return nil, err
	}

	for _, i := range fetched {
		if !i.IsOpen() {
			continue
		}
		if known[i.Number()] != issue.Fingerprint(i) {
			stale[i.Number()] = struct{}{}
		}
	}
	return stale, nil
}

// processBatch embeds stale open issues with bounded parallelism and flags
// closed ones. A single issue's failure never aborts the batch.
func (s *RefreshService) processBatch(ctx context.Context, repo issue.RepoName, batch []issue.Issue, stale map[int]struct{}) (processed, failed int) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Parallelism()))

	for _, i := range batch {
		if !i.IsOpen() {
			if err := s.store.MarkClosed(ctx, repo, i.Number()); err != nil {
				s.logger.WarnContext(ctx, "failed to mark issue closed", "repo", repo.String(), "issue", i.Number(), "error", err)
				failed++
				continue
			}
			processed++
			continue
		}

		if _, ok := stale[i.Number()]; !ok {
			continue
		}

		g.Go(func() error {
			err := s.embedOne(gctx, i)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.WarnContext(ctx, "issue embedding failed", "repo", repo.String(), "issue", i.Number(), "error", err)
				failed++
			} else {
				processed++
			}
			return nil
		})
	}

	_ = g.Wait()
	return processed, failed
}

// embedOne embeds a single issue under its own timeout and upserts the entry.
func (s *RefreshService) embedOne(ctx context.Context, i issue.Issue) error {
	embedCtx := ctx
	if timeout := s.cfg.EmbedTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vectors, err := s.embedder.Embed(embedCtx, []string{issue.CanonicalText(i)})
	if err != nil {
		return err
	}
	if len(vectors) != 1 {
		return fmt.Errorf("expected 1 vector, got %d", len(vectors))
	}

	entry := search.NewEmbedding(
		i.Repo(),
		i.Number(),
		i.Title(),
		issue.Fingerprint(i),
		vectors[0],
		i.State(),
		i.UpdatedAt(),
	)
	return s.store.Upsert(ctx, entry)
}

func (s *RefreshService) acquire(repo issue.RepoName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inFlight[repo.String()]; held {
		return false
	}
	s.inFlight[repo.String()] = struct{}{}
	return true
}

func (s *RefreshService) release(repo issue.RepoName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, repo.String())
}
