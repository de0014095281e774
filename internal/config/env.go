package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds environment-based configuration overrides. Field names map
// to environment variables directly; nested structs use an underscore
// delimiter (e.g. EMBEDDING_ENDPOINT_BASE_URL). Unset variables leave the
// corresponding setting at its default (or config-file) value.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST
	Host string `envconfig:"HOST"`

	// Port is the server port to listen on.
	// Env: PORT
	Port int `envconfig:"PORT"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL
	LogLevel string `envconfig:"LOG_LEVEL"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT
	LogFormat string `envconfig:"LOG_FORMAT"`

	// DefaultThreshold is the similarity threshold used when a request does
	// not supply one.
	// Env: DEFAULT_THRESHOLD
	DefaultThreshold float64 `envconfig:"DEFAULT_THRESHOLD"`

	// EmbeddingEndpoint configures the embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// GitHub configures GitHub API access.
	GitHub GitHubEnv `envconfig:"GITHUB"`

	// Refresh tunes the refresh pipeline.
	Refresh RefreshEnv `envconfig:"REFRESH"`
}

// EndpointEnv holds environment configuration for the embedding endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: EMBEDDING_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the embedding model identifier.
	// Env: EMBEDDING_ENDPOINT_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: EMBEDDING_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Dimensions is the embedding vector dimensionality.
	// Env: EMBEDDING_ENDPOINT_DIMENSIONS
	Dimensions int `envconfig:"DIMENSIONS"`

	// Timeout is the request timeout in seconds.
	// Env: EMBEDDING_ENDPOINT_TIMEOUT
	Timeout float64 `envconfig:"TIMEOUT"`

	// MaxRetries is the maximum number of retries.
	// Env: EMBEDDING_ENDPOINT_MAX_RETRIES
	MaxRetries int `envconfig:"MAX_RETRIES"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: EMBEDDING_ENDPOINT_INITIAL_DELAY
	InitialDelay float64 `envconfig:"INITIAL_DELAY"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: EMBEDDING_ENDPOINT_BACKOFF_FACTOR
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR"`
}

// GitHubEnv holds environment configuration for GitHub access.
type GitHubEnv struct {
	// Token is a personal access token.
	// Env: GITHUB_TOKEN
	Token string `envconfig:"TOKEN"`

	// AppID is the GitHub App ID.
	// Env: GITHUB_APP_ID
	AppID int64 `envconfig:"APP_ID"`

	// InstallationID is the GitHub App installation ID.
	// Env: GITHUB_INSTALLATION_ID
	InstallationID int64 `envconfig:"INSTALLATION_ID"`

	// PrivateKeyPath is the GitHub App private key path.
	// Env: GITHUB_PRIVATE_KEY_PATH
	PrivateKeyPath string `envconfig:"PRIVATE_KEY_PATH"`
}

// RefreshEnv holds environment configuration for the refresh pipeline.
type RefreshEnv struct {
	// Parallelism is the number of concurrent embedding workers.
	// Env: REFRESH_PARALLELISM
	Parallelism int `envconfig:"PARALLELISM"`

	// BatchSize is the number of issues per persistence batch.
	// Env: REFRESH_BATCH_SIZE
	BatchSize int `envconfig:"BATCH_SIZE"`

	// EmbedTimeoutSeconds is the per-issue embedding timeout in seconds.
	// Env: REFRESH_EMBED_TIMEOUT_SECONDS
	EmbedTimeoutSeconds float64 `envconfig:"EMBED_TIMEOUT_SECONDS"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig builds an AppConfig from defaults plus the set variables.
func (e EnvConfig) ToAppConfig() AppConfig {
	return NewAppConfig(e.options()...)
}

// options returns one AppConfigOption per variable the environment sets.
func (e EnvConfig) options() []AppConfigOption {
	var opts []AppConfigOption

	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(ParseLogFormat(e.LogFormat)))
	}
	if e.DefaultThreshold > 0 {
		opts = append(opts, WithDefaultThreshold(e.DefaultThreshold))
	}

	if eo := e.EmbeddingEndpoint.options(); len(eo) > 0 {
		opts = append(opts, WithEmbeddingOptions(eo...))
	}
	if gh := e.GitHub.options(); len(gh) > 0 {
		opts = append(opts, WithGitHubOptions(gh...))
	}
	if ro := e.Refresh.options(); len(ro) > 0 {
		opts = append(opts, WithRefreshOptions(ro...))
	}

	return opts
}

func (e EndpointEnv) options() []EndpointOption {
	var opts []EndpointOption
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.Model != "" {
		opts = append(opts, WithModel(e.Model))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	if e.Dimensions > 0 {
		opts = append(opts, WithDimensions(e.Dimensions))
	}
	if e.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(e.Timeout*float64(time.Second))))
	}
	if e.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(e.MaxRetries))
	}
	if e.InitialDelay > 0 {
		opts = append(opts, WithInitialDelay(time.Duration(e.InitialDelay*float64(time.Second))))
	}
	if e.BackoffFactor > 0 {
		opts = append(opts, WithBackoffFactor(e.BackoffFactor))
	}
	return opts
}

func (g GitHubEnv) options() []GitHubConfigOption {
	var opts []GitHubConfigOption
	if g.Token != "" {
		opts = append(opts, WithToken(g.Token))
	}
	if g.AppID != 0 {
		opts = append(opts, WithApp(g.AppID, g.InstallationID, g.PrivateKeyPath))
	}
	return opts
}

func (r RefreshEnv) options() []RefreshConfigOption {
	var opts []RefreshConfigOption
	if r.Parallelism > 0 {
		opts = append(opts, WithParallelism(r.Parallelism))
	}
	if r.BatchSize > 0 {
		opts = append(opts, WithBatchSize(r.BatchSize))
	}
	if r.EmbedTimeoutSeconds > 0 {
		opts = append(opts, WithEmbedTimeout(time.Duration(r.EmbedTimeoutSeconds*float64(time.Second))))
	}
	return opts
}
