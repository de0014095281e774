// Package dupdex provides semantic duplicate detection for issue trackers.
//
// Dupdex keeps a persistent cache of issue embeddings per repository and
// answers "which open issues look like this one" queries from that cache.
// The cache is refreshed incrementally: only issues modified since the last
// refresh are fetched, and only issues whose content actually changed are
// re-embedded.
//
// Basic usage:
//
//	client, err := dupdex.New(
//	    dupdex.WithSQLite("dupdex.db"),
//	    dupdex.WithGitHubToken(os.Getenv("GITHUB_TOKEN")),
//	    dupdex.WithOpenAIEndpoint(config.NewEndpoint(
//	        config.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    )),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Synchronize the cache
//	result, err := client.Refresh.Refresh(ctx, "acme/widgets", false)
//
//	// Query duplicates
//	report, err := client.Duplicates.Find(ctx, "acme/widgets", 123)
//	for _, m := range report.Matches() {
//	    fmt.Printf("#%d %s (%.2f)\n", m.Number(), m.Title(), m.Score())
//	}
package dupdex

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/persistence"
	"github.com/dupdex/dupdex/infrastructure/provider"
	"github.com/dupdex/dupdex/infrastructure/tracker"
	"github.com/dupdex/dupdex/internal/database"
	"github.com/dupdex/dupdex/internal/log"
)

// Connection pool defaults. Refresh runs a handful of concurrent upserts per
// repository, so a small pool is enough.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = time.Hour
)

// Sentinel errors returned by Client construction and lifecycle.
var (
	// ErrNoDatabase indicates no database option was provided.
	ErrNoDatabase = errors.New("no database configured: use WithSQLite, WithPostgres, or WithDBURL")

	// ErrClientClosed indicates the client was already closed.
	ErrClientClosed = errors.New("client is closed")
)

// Client is the main entry point for the dupdex library.
//
// Access operations via struct fields:
//
//	client.Refresh.Refresh(ctx, "owner/repo", false)
//	client.Duplicates.Find(ctx, "owner/repo", 123)
type Client struct {
	Refresh    *service.RefreshService
	Duplicates *service.DuplicateService

	db     database.Database
	store  search.EmbeddingStore
	logger *log.Logger
	closed atomic.Bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.Default()
	}

	ctx := context.Background()

	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.ConfigurePool(defaultMaxOpenConns, defaultMaxIdleConns, defaultConnMaxLifetime); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("configure pool: %w", err), errClose)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	store, err := buildEmbeddingStore(ctx, cfg, db, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("embedding store: %w", err), errClose)
	}

	embedder := cfg.embedder
	if embedder == nil {
		embedder = provider.NewOpenAIEmbedder(cfg.endpoint)
	}

	source, err := buildSource(cfg, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("issue source: %w", err), errClose)
	}

	client := &Client{
		db:     db,
		store:  store,
		logger: logger,
	}
	client.Refresh = service.NewRefreshService(source, store, embedder, cfg.refresh, logger)
	client.Duplicates = service.NewDuplicateService(store, cfg.defaultThreshold, logger)

	return client, nil
}

// Close releases the database connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("dupdex client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *log.Logger {
	return c.logger
}

// Store returns the embedding store, mainly for tests and tooling.
func (c *Client) Store() search.EmbeddingStore {
	return c.store
}

// buildEmbeddingStore picks the store backend matching the database driver.
func buildEmbeddingStore(ctx context.Context, cfg *clientConfig, db database.Database, logger *log.Logger) (search.EmbeddingStore, error) {
	if db.IsPostgres() {
		return persistence.NewPgvectorEmbeddingStore(ctx, db, cfg.endpoint.Dimensions(), logger)
	}
	return persistence.NewSQLiteEmbeddingStore(db, logger), nil
}

// buildSource creates the issue source from config, preferring an explicit
// source, then GitHub App credentials, then a token. Without credentials an
// unauthenticated client is used, subject to GitHub's low anonymous limits.
func buildSource(cfg *clientConfig, logger *log.Logger) (issue.Source, error) {
	if cfg.source != nil {
		return cfg.source, nil
	}
	if cfg.github.HasApp() {
		return tracker.NewAppSource(cfg.github.AppID(), cfg.github.InstallationID(), cfg.github.PrivateKeyPath(), tracker.WithLogger(logger))
	}
	return tracker.NewTokenSource(cfg.github.Token(), tracker.WithLogger(logger)), nil
}
