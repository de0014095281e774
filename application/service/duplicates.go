package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/internal/log"
)

// DuplicateService answers duplicate queries from the embedding cache alone.
// It never calls the issue tracker or the embedding provider, so queries stay
// fast and work even when both are down.
type DuplicateService struct {
	store            search.EmbeddingStore
	defaultThreshold float64
	logger           *log.Logger
}

// NewDuplicateService creates a DuplicateService.
func NewDuplicateService(store search.EmbeddingStore, defaultThreshold float64, logger *log.Logger) *DuplicateService {
	if logger == nil {
		logger = log.Default()
	}
	return &DuplicateService{
		store:            store,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// FindOption adjusts a single Find call.
type FindOption func(*findConfig)

type findConfig struct {
	threshold    float64
	thresholdSet bool
}

// WithThreshold overrides the default similarity threshold for one call.
func WithThreshold(threshold float64) FindOption {
	return func(c *findConfig) {
		c.threshold = threshold
		c.thresholdSet = true
	}
}

// Find returns the ranked duplicate candidates for one issue, reading only
// the cached embeddings. The target issue must already be indexed.
func (s *DuplicateService) Find(ctx context.Context, repository string, number int, opts ...FindOption) (search.Report, error) {
	repo, err := issue.ParseRepo(repository)
	if err != nil {
		return search.Report{}, fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}

	cfg := findConfig{threshold: s.defaultThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold < 0 || cfg.threshold > 1 {
		return search.Report{}, fmt.Errorf("%w: got %v", ErrInvalidThreshold, cfg.threshold)
	}

	target, err := s.store.Get(ctx, repo, number)
	if err != nil {
		if errors.Is(err, search.ErrNotFound) {
			return search.Report{}, fmt.Errorf("%w: %s#%d", ErrNotIndexed, repo.String(), number)
		}
		return search.Report{}, errors.Join(ErrStoreUnavailable, err)
	}

	matches, err := s.store.Search(ctx, repo, target.Vector(), number)
	if err != nil {
		return search.Report{}, errors.Join(ErrStoreUnavailable, err)
	}

	ranked := search.Rank(matches, cfg.threshold)

	s.logger.DebugContext(ctx, "duplicate query",
		"repo", repo.String(),
		"issue", number,
		"threshold", cfg.threshold,
		"candidates", len(matches),
		"matches", len(ranked),
	)
	return search.NewReport(repo, number, ranked), nil
}
