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

// SQL specific to pgvector (extension, index, catalog).
const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvCreateTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    repo VARCHAR(255) NOT NULL,
    issue_number INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    fingerprint VARCHAR(64) NOT NULL,
    embedding VECTOR(%d) NOT NULL,
    state VARCHAR(16) NOT NULL,
    refreshed_at TIMESTAMPTZ NOT NULL,
    UNIQUE (repo, issue_number)
)`

	pgvCreateIndexTemplate = `
CREATE INDEX IF NOT EXISTS %s_embedding_idx
ON %s
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`

	pgvCheckDimension = `
SELECT a.atttypmod as dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = ?
AND a.attname = 'embedding'`
)

// ErrPgvectorInitializationFailed indicates pgvector initialization failed.
var ErrPgvectorInitializationFailed = errors.New("failed to initialize pgvector store")

// ErrDimensionMismatch indicates the table's vector dimension does not match
// the configured embedding dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// PgvectorEmbeddingStore implements search.EmbeddingStore using the
// PostgreSQL pgvector extension with an ivfflat cosine index.
type PgvectorEmbeddingStore struct {
	database.Repository[search.Embedding, PgEmbeddingModel]
	watermarkStore
	db     database.Database
	logger *log.Logger
}

// NewPgvectorEmbeddingStore creates a PgvectorEmbeddingStore, eagerly
// initializing the extension, table, and index, and verifying the dimension.
func NewPgvectorEmbeddingStore(ctx context.Context, db database.Database, dimension int, logger *log.Logger) (*PgvectorEmbeddingStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &PgvectorEmbeddingStore{
		Repository:     database.NewRepository[search.Embedding, PgEmbeddingModel](db, pgEmbeddingMapper{}, "embedding"),
		watermarkStore: watermarkStore{db: db},
		db:             db,
		logger:         logger,
	}

	rawDB := db.Session(ctx)

	if err := rawDB.Exec(pgvCreateExtension).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create extension: %w", err))
	}

	// Dynamic vector dimension requires raw SQL.
	if err := rawDB.Exec(fmt.Sprintf(pgvCreateTableTemplate, embeddingTable, dimension)).Error; err != nil {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("create table: %w", err))
	}

	if err := rawDB.Exec(fmt.Sprintf(pgvCreateIndexTemplate, embeddingTable, embeddingTable)).Error; err != nil {
		logger.Warn("failed to create ivfflat index (may already exist)", "error", err)
	}

	var dbDimension int
	result := rawDB.Raw(pgvCheckDimension, embeddingTable).Scan(&dbDimension)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.Join(ErrPgvectorInitializationFailed, fmt.Errorf("check dimension: %w", result.Error))
	}
	if result.RowsAffected > 0 && dbDimension != dimension {
		return nil, fmt.Errorf("%w: table has %d, provider has %d", ErrDimensionMismatch, dbDimension, dimension)
	}

	return s, nil
}

// Upsert writes an entry, skipping the write when the stored fingerprint is
// unchanged. The compare and write run in one transaction.
func (s *PgvectorEmbeddingStore) Upsert(ctx context.Context, entry search.Embedding) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var existing PgEmbeddingModel
		result := tx.Select("fingerprint").
			Where("repo = ? AND issue_number = ?", entry.Repo().String(), entry.Number()).
			First(&existing)
		if result.Error == nil && existing.Fingerprint == entry.Fingerprint() {
			return nil
		}
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		model := pgEmbeddingMapper{}.ToModel(entry)
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
func (s *PgvectorEmbeddingStore) Fingerprints(ctx context.Context, repo issue.RepoName, numbers []int) (map[int]string, error) {
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
func (s *PgvectorEmbeddingStore) Get(ctx context.Context, repo issue.RepoName, number int) (search.Embedding, error) {
	entry, err := s.FindOne(ctx, store.WithRepo(repo.String()), store.WithIssueNumber(number))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return search.Embedding{}, search.ErrNotFound
		}
		return search.Embedding{}, err
	}
	return entry, nil
}

// Search scores every open entry of the repository against the query vector
// using the pgvector cosine distance operator. Embeddings are stored
// unit-normalized, so similarity is 1 minus the cosine distance.
func (s *PgvectorEmbeddingStore) Search(ctx context.Context, repo issue.RepoName, query []float64, exclude int) ([]search.Match, error) {
	queryVector := database.NewPgVector(query).String()

	var rows []struct {
		IssueNumber int     `gorm:"column:issue_number"`
		Title       string  `gorm:"column:title"`
		Distance    float64 `gorm:"column:distance"`
	}

	err := s.db.Session(ctx).
		Table(embeddingTable).
		Select("issue_number, title, embedding <=> ? as distance", queryVector).
		Where("repo = ? AND state = ? AND issue_number != ?", repo.String(), string(issue.StateOpen), exclude).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}

	matches := make([]search.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, search.NewMatch(row.IssueNumber, row.Title, 1.0-row.Distance))
	}
	return matches, nil
}

// MarkClosed flags an entry so reads exclude it. Unknown issues are a no-op.
func (s *PgvectorEmbeddingStore) MarkClosed(ctx context.Context, repo issue.RepoName, number int) error {
	err := s.db.Session(ctx).
		Model(&PgEmbeddingModel{}).
		Where("repo = ? AND issue_number = ?", repo.String(), number).
		Update("state", string(issue.StateClosed)).Error
	if err != nil {
		return fmt.Errorf("mark closed: %w", err)
	}
	return nil
}

var _ search.EmbeddingStore = (*PgvectorEmbeddingStore)(nil)
