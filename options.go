package dupdex

import (
	"fmt"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/internal/config"
	"github.com/dupdex/dupdex/internal/log"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL            string
	endpoint         config.Endpoint
	github           config.GitHubConfig
	refresh          config.RefreshConfig
	defaultThreshold float64
	embedder         search.Embedder
	source           issue.Source
	logger           *log.Logger
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		endpoint:         config.NewEndpoint(),
		refresh:          config.NewRefreshConfig(),
		defaultThreshold: config.DefaultThreshold,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database, storing vectors as JSON.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = fmt.Sprintf("sqlite:///%s", path)
	}
}

// WithPostgres configures PostgreSQL with the pgvector extension.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDBURL sets the database connection URL directly. Both sqlite:// and
// postgres:// URLs are accepted.
func WithDBURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithOpenAIEndpoint configures the OpenAI-compatible embedding endpoint.
func WithOpenAIEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) {
		c.endpoint = e
	}
}

// WithEmbedder sets a custom embedding provider, replacing the OpenAI one.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithGitHubToken configures GitHub access via a personal access token.
func WithGitHubToken(token string) Option {
	return func(c *clientConfig) {
		c.github = config.NewGitHubConfig(config.WithToken(token))
	}
}

// WithGitHubApp configures GitHub access via a GitHub App installation.
func WithGitHubApp(appID, installationID int64, privateKeyPath string) Option {
	return func(c *clientConfig) {
		c.github = config.NewGitHubConfig(config.WithApp(appID, installationID, privateKeyPath))
	}
}

// WithSource sets a custom issue source, replacing the GitHub one.
func WithSource(s issue.Source) Option {
	return func(c *clientConfig) {
		c.source = s
	}
}

// WithRefreshConfig sets the refresh tuning configuration.
func WithRefreshConfig(cfg config.RefreshConfig) Option {
	return func(c *clientConfig) {
		c.refresh = cfg
	}
}

// WithDefaultThreshold sets the default similarity threshold for duplicate
// queries.
func WithDefaultThreshold(threshold float64) Option {
	return func(c *clientConfig) {
		c.defaultThreshold = threshold
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
