package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/domain/store"
	"github.com/dupdex/dupdex/internal/database"
	"github.com/dupdex/dupdex/internal/log"
)

// SQLiteEmbeddingStore implements search.EmbeddingStore for SQLite.
// Vectors are stored as JSON and similarity is computed by an in-memory scan;
// a single repository's open corpus is small enough that this stays cheap.
type SQLiteEmbeddingStore struct {
	database.Repository[search.Embedding, SQLiteEmbeddingModel]
	watermarkStore
	db     database.Database
	logger *log.Logger
}

// NewSQLiteEmbeddingStore creates a new SQLiteEmbeddingStore.
func NewSQLiteEmbeddingStore(db database.Database, logger *log.Logger) *SQLiteEmbeddingStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SQLiteEmbeddingStore{
		Repository:     database.NewRepository[search.Embedding, SQLiteEmbeddingModel](db, sqliteEmbeddingMapper{}, "embedding"),
		watermarkStore: watermarkStore{db: db},
		db:             db,
		logger:         logger,
	}
}

// Upsert writes an entry, skipping the write when the stored fingerprint is
// unchanged. The compare and write run in one transaction so readers never
// observe a half-written row.
func (s *SQLiteEmbeddingStore) Upsert(ctx context.Context, entry search.Embedding) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var existing SQLiteEmbeddingModel
		result := tx.Where("repo = ? AND issue_number = ?", entry.Repo().String(), entry.Number()).
			First(&existing)
		if result.Error == nil && existing.Fingerprint == entry.Fingerprint() {
			return nil
		}
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		model := sqliteEmbeddingMapper{}.ToModel(entry)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo"}, {Name: "issue_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "fingerprint", "embedding", "state", "refreshed_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Fingerprints bulk-reads current fingerprints for the given issue numbers.
func (s *SQLiteEmbeddingStore) Fingerprints(ctx context.Context, repo issue.RepoName, numbers []int) (map[int]string, error) {
	if len(numbers) == 0 {
		return map[int]string{}, nil
	}

	entries, err := s.Find(ctx, store.WithRepo(repo.String()), store.WithIssueNumberIn(numbers))
	if err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}

	fingerprints := make(map[int]string, len(entries))
	for _, entry := range entries {
		fingerprints[entry.Number()] = entry.Fingerprint()
	}
	return fingerprints, nil
}

// Get returns the entry for one issue, or search.ErrNotFound.
func (s *SQLiteEmbeddingStore) Get(ctx context.Context, repo issue.RepoName, number int) (search.Embedding, error) {
	entry, err := s.FindOne(ctx, store.WithRepo(repo.String()), store.WithIssueNumber(number))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return search.Embedding{}, search.ErrNotFound
		}
		return search.Embedding{}, err
	}
	return entry, nil
}

// Search scores every open entry of the repository against the query vector,
// excluding the given issue number. Scores are raw cosine similarities; the
// caller owns ordering and thresholds.
func (s *SQLiteEmbeddingStore) Search(ctx context.Context, repo issue.RepoName, query []float64, exclude int) ([]search.Match, error) {
	entries, err := s.Find(ctx, store.WithRepo(repo.String()), store.WithState(string(issue.StateOpen)))
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}

	matches := make([]search.Match, 0, len(entries))
	for _, entry := range entries {
		if entry.Number() == exclude {
			continue
		}
		vector := entry.Vector()
		if len(vector) == 0 {
			s.logger.WarnContext(ctx, "skipping empty embedding", "repo", repo.String(), "issue", entry.Number())
			continue
		}
		score := search.CosineSimilarity(query, vector)
		matches = append(matches, search.NewMatch(entry.Number(), entry.Title(), score))
	}
	return matches, nil
}

// MarkClosed flags an entry so reads exclude it. Unknown issues are a no-op.
func (s *SQLiteEmbeddingStore) MarkClosed(ctx context.Context, repo issue.RepoName, number int) error {
	err := s.db.Session(ctx).
		Model(&SQLiteEmbeddingModel{}).
		Where("repo = ? AND issue_number = ?", repo.String(), number).
		Update("state", string(issue.StateClosed)).Error
	if err != nil {
		return fmt.Errorf("mark closed: %w", err)
	}
	return nil
}

var _ search.EmbeddingStore = (*SQLiteEmbeddingStore)(nil)
