// Package persistence provides database storage implementations.
package persistence

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/internal/database"
)

// embeddingTable is the shared table name for both store backends.
const embeddingTable = "issue_embeddings"

// Float64Slice is a custom type for JSON serialization of []float64 in SQLite.
type Float64Slice []float64

// Scan implements sql.Scanner for reading JSON from SQLite.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer for writing JSON to SQLite.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// SQLiteEmbeddingModel represents a cached issue embedding in SQLite.
type SQLiteEmbeddingModel struct {
	ID          int64        `gorm:"column:id;primaryKey;autoIncrement"`
	Repo        string       `gorm:"column:repo;uniqueIndex:idx_issue_embeddings_key"`
	IssueNumber int          `gorm:"column:issue_number;uniqueIndex:idx_issue_embeddings_key"`
	Title       string       `gorm:"column:title"`
	Fingerprint string       `gorm:"column:fingerprint"`
	Embedding   Float64Slice `gorm:"column:embedding;type:json"`
	State       string       `gorm:"column:state;index"`
	RefreshedAt time.Time    `gorm:"column:refreshed_at"`
}

// TableName implements the GORM table-name convention.
func (SQLiteEmbeddingModel) TableName() string { return embeddingTable }

type sqliteEmbeddingMapper struct{}

func (sqliteEmbeddingMapper) ToDomain(entity SQLiteEmbeddingModel) search.Embedding {
	repo, _ := issue.ParseRepo(entity.Repo)
	return search.NewEmbedding(
		repo,
		entity.IssueNumber,
		entity.Title,
		entity.Fingerprint,
		[]float64(entity.Embedding),
		issue.State(entity.State),
		entity.RefreshedAt,
	)
}

func (sqliteEmbeddingMapper) ToModel(domain search.Embedding) SQLiteEmbeddingModel {
	vec := domain.Vector()
	cp := make(Float64Slice, len(vec))
	copy(cp, vec)
	return SQLiteEmbeddingModel{
		Repo:        domain.Repo().String(),
		IssueNumber: domain.Number(),
		Title:       domain.Title(),
		Fingerprint: domain.Fingerprint(),
		Embedding:   cp,
		State:       string(domain.State()),
		RefreshedAt: domain.RefreshedAt(),
	}
}

// PgEmbeddingModel represents a cached issue embedding in a pgvector table.
type PgEmbeddingModel struct {
	ID          int64             `gorm:"column:id;primaryKey;autoIncrement"`
	Repo        string            `gorm:"column:repo;uniqueIndex:idx_issue_embeddings_key"`
	IssueNumber int               `gorm:"column:issue_number;uniqueIndex:idx_issue_embeddings_key"`
	Title       string            `gorm:"column:title"`
	Fingerprint string            `gorm:"column:fingerprint"`
	Embedding   database.PgVector `gorm:"column:embedding;type:vector"`
	State       string            `gorm:"column:state;index"`
	RefreshedAt time.Time         `gorm:"column:refreshed_at"`
}

// TableName implements the GORM table-name convention.
func (PgEmbeddingModel) TableName() string { return embeddingTable }

type pgEmbeddingMapper struct{}

func (pgEmbeddingMapper) ToDomain(entity PgEmbeddingModel) search.Embedding {
	repo, _ := issue.ParseRepo(entity.Repo)
	return search.NewEmbedding(
		repo,
		entity.IssueNumber,
		entity.Title,
		entity.Fingerprint,
		entity.Embedding.Floats(),
		issue.State(entity.State),
		entity.RefreshedAt,
	)
}

func (pgEmbeddingMapper) ToModel(domain search.Embedding) PgEmbeddingModel {
	return PgEmbeddingModel{
		Repo:        domain.Repo().String(),
		IssueNumber: domain.Number(),
		Title:       domain.Title(),
		Fingerprint: domain.Fingerprint(),
		Embedding:   database.NewPgVector(domain.Vector()),
		State:       string(domain.State()),
		RefreshedAt: domain.RefreshedAt(),
	}
}

// RefreshStateModel stores the per-repository refresh watermark.
type RefreshStateModel struct {
	Repo      string    `gorm:"column:repo;primaryKey"`
	Watermark time.Time `gorm:"column:watermark"`
}

// TableName implements the GORM table-name convention.
func (RefreshStateModel) TableName() string { return "refresh_states" }

// AutoMigrate creates the schema owned by this package. The pgvector
// embedding table is created by NewPgvectorEmbeddingStore because its vector
// column needs an explicit dimension.
func AutoMigrate(db database.Database) error {
	models := []any{&RefreshStateModel{}}
	if db.IsSQLite() {
		models = append(models, &SQLiteEmbeddingModel{})
	}
	if err := db.Session(context.Background()).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
