// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/dupdex/dupdex/internal/log"
)

// Default configuration values.
const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 8080
	DefaultDBURL     = "sqlite:///dupdex.db"
	DefaultThreshold = 0.9
)

// AppConfig is the immutable application configuration.
type AppConfig struct {
	host             string
	port             int
	dbURL            string
	logLevel         string
	logFormat        log.Format
	defaultThreshold float64
	embedding        Endpoint
	github           GitHubConfig
	refresh          RefreshConfig
}

// AppConfigOption mutates an AppConfig during construction.
type AppConfigOption func(*AppConfig)

// NewAppConfig creates an AppConfig with defaults, applying the given options.
func NewAppConfig(opts ...AppConfigOption) AppConfig {
	cfg := AppConfig{
		host:             DefaultHost,
		port:             DefaultPort,
		dbURL:            DefaultDBURL,
		logLevel:         "INFO",
		logFormat:        log.FormatPretty,
		defaultThreshold: DefaultThreshold,
		embedding:        NewEndpoint(),
		refresh:          NewRefreshConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithHost sets the server bind host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDBURL sets the database connection URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log verbosity level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log output format.
func WithLogFormat(format log.Format) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithDefaultThreshold sets the default similarity threshold.
func WithDefaultThreshold(threshold float64) AppConfigOption {
	return func(c *AppConfig) { c.defaultThreshold = threshold }
}

// WithEmbeddingEndpoint sets the embedding endpoint configuration.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithGitHubConfig sets the GitHub access configuration.
func WithGitHubConfig(g GitHubConfig) AppConfigOption {
	return func(c *AppConfig) { c.github = g }
}

// WithRefreshConfig sets the refresh tuning configuration.
func WithRefreshConfig(r RefreshConfig) AppConfigOption {
	return func(c *AppConfig) { c.refresh = r }
}

// WithEmbeddingOptions applies endpoint options on top of the current
// embedding endpoint instead of replacing it.
func WithEmbeddingOptions(opts ...EndpointOption) AppConfigOption {
	return func(c *AppConfig) { c.embedding = c.embedding.Apply(opts...) }
}

// WithGitHubOptions applies GitHub options on top of the current GitHub
// configuration instead of replacing it.
func WithGitHubOptions(opts ...GitHubConfigOption) AppConfigOption {
	return func(c *AppConfig) { c.github = c.github.Apply(opts...) }
}

// WithRefreshOptions applies refresh options on top of the current refresh
// configuration instead of replacing it.
func WithRefreshOptions(opts ...RefreshConfigOption) AppConfigOption {
	return func(c *AppConfig) { c.refresh = c.refresh.Apply(opts...) }
}

// Apply returns a copy of the config with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Host returns the server bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() log.Format { return c.logFormat }

// DefaultThreshold returns the default similarity threshold.
func (c AppConfig) DefaultThreshold() float64 { return c.defaultThreshold }

// EmbeddingEndpoint returns the embedding endpoint configuration.
func (c AppConfig) EmbeddingEndpoint() Endpoint { return c.embedding }

// GitHub returns the GitHub access configuration.
func (c AppConfig) GitHub() GitHubConfig { return c.github }

// Refresh returns the refresh tuning configuration.
func (c AppConfig) Refresh() RefreshConfig { return c.refresh }

// ParseLogFormat maps a format name to a log.Format, defaulting to pretty.
func ParseLogFormat(s string) log.Format {
	if strings.ToLower(s) == "json" {
		return log.FormatJSON
	}
	return log.FormatPretty
}

// Endpoint configures a remote embedding service.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	dimensions    int
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// EndpointOption mutates an Endpoint during construction.
type EndpointOption func(*Endpoint)

// NewEndpoint creates an Endpoint with defaults, applying the given options.
func NewEndpoint(opts ...EndpointOption) Endpoint {
	e := Endpoint{
		model:         "text-embedding-3-small",
		dimensions:    768,
		timeout:       60 * time.Second,
		maxRetries:    5,
		initialDelay:  time.Second,
		backoffFactor: 2.0,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithBaseURL sets the endpoint base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the embedding model identifier.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the endpoint API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithDimensions sets the embedding vector dimensionality.
func WithDimensions(d int) EndpointOption {
	return func(e *Endpoint) { e.dimensions = d }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// Apply returns a copy of the endpoint with the given options applied.
func (e Endpoint) Apply(opts ...EndpointOption) Endpoint {
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// BaseURL returns the endpoint base URL.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the embedding model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the endpoint API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Dimensions returns the embedding vector dimensionality.
func (e Endpoint) Dimensions() int { return e.dimensions }

// Timeout returns the per-request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry attempts.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// GitHubConfig configures GitHub API access, either via a personal access
// token or a GitHub App installation.
type GitHubConfig struct {
	token          string
	appID          int64
	installationID int64
	privateKeyPath string
}

// GitHubConfigOption mutates a GitHubConfig during construction.
type GitHubConfigOption func(*GitHubConfig)

// NewGitHubConfig creates a GitHubConfig, applying the given options.
func NewGitHubConfig(opts ...GitHubConfigOption) GitHubConfig {
	var g GitHubConfig
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// WithToken sets a personal access token.
func WithToken(token string) GitHubConfigOption {
	return func(g *GitHubConfig) { g.token = token }
}

// WithApp sets GitHub App installation credentials.
func WithApp(appID, installationID int64, privateKeyPath string) GitHubConfigOption {
	return func(g *GitHubConfig) {
		g.appID = appID
		g.installationID = installationID
		g.privateKeyPath = privateKeyPath
	}
}

// Apply returns a copy of the config with the given options applied.
func (g GitHubConfig) Apply(opts ...GitHubConfigOption) GitHubConfig {
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// Token returns the personal access token.
func (g GitHubConfig) Token() string { return g.token }

// AppID returns the GitHub App ID.
func (g GitHubConfig) AppID() int64 { return g.appID }

// InstallationID returns the GitHub App installation ID.
func (g GitHubConfig) InstallationID() int64 { return g.installationID }

// PrivateKeyPath returns the GitHub App private key path.
func (g GitHubConfig) PrivateKeyPath() string { return g.privateKeyPath }

// HasApp reports whether GitHub App credentials are configured.
func (g GitHubConfig) HasApp() bool {
	return g.appID != 0 && g.installationID != 0 && g.privateKeyPath != ""
}

// RefreshConfig tunes the refresh pipeline.
type RefreshConfig struct {
	parallelism  int
	batchSize    int
	embedTimeout time.Duration
}

// RefreshConfigOption mutates a RefreshConfig during construction.
type RefreshConfigOption func(*RefreshConfig)

// NewRefreshConfig creates a RefreshConfig with defaults, applying the given
// options.
func NewRefreshConfig(opts ...RefreshConfigOption) RefreshConfig {
	r := RefreshConfig{
		parallelism:  4,
		batchSize:    25,
		embedTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithParallelism sets the number of concurrent embedding workers.
func WithParallelism(n int) RefreshConfigOption {
	return func(r *RefreshConfig) { r.parallelism = n }
}

// WithBatchSize sets the number of issues per persistence batch.
func WithBatchSize(n int) RefreshConfigOption {
	return func(r *RefreshConfig) { r.batchSize = n }
}

// WithEmbedTimeout sets the per-batch embedding timeout.
func WithEmbedTimeout(d time.Duration) RefreshConfigOption {
	return func(r *RefreshConfig) { r.embedTimeout = d }
}

// Apply returns a copy of the config with the given options applied.
func (r RefreshConfig) Apply(opts ...RefreshConfigOption) RefreshConfig {
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Parallelism returns the number of concurrent embedding workers.
func (r RefreshConfig) Parallelism() int { return r.parallelism }

// BatchSize returns the number of issues per persistence batch.
func (r RefreshConfig) BatchSize() int { return r.batchSize }

// EmbedTimeout returns the per-batch embedding timeout.
func (r RefreshConfig) EmbedTimeout() time.Duration { return r.embedTimeout }
