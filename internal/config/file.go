package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up when no path is given.
const DefaultConfigFile = "dupdex.yaml"

// FileConfig mirrors AppConfig for YAML decoding. Zero fields leave the
// corresponding setting untouched, so a file only needs the keys it changes.
type FileConfig struct {
	Host             string  `yaml:"host"`
	Port             int     `yaml:"port"`
	DBURL            string  `yaml:"db_url"`
	LogLevel         string  `yaml:"log_level"`
	LogFormat        string  `yaml:"log_format"`
	DefaultThreshold float64 `yaml:"default_threshold"`

	Embedding EmbeddingFile `yaml:"embedding"`
	GitHub    GitHubFile    `yaml:"github"`
	Refresh   RefreshFile   `yaml:"refresh"`
}

// EmbeddingFile holds the embedding endpoint section of a config file.
type EmbeddingFile struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	Dimensions     int     `yaml:"dimensions"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// GitHubFile holds the GitHub section of a config file.
type GitHubFile struct {
	Token          string `yaml:"token"`
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// RefreshFile holds the refresh tuning section of a config file.
type RefreshFile struct {
	Parallelism         int     `yaml:"parallelism"`
	BatchSize           int     `yaml:"batch_size"`
	EmbedTimeoutSeconds float64 `yaml:"embed_timeout_seconds"`
}

// LoadConfigFile reads and decodes a YAML config file. With an empty path it
// falls back to DefaultConfigFile in the current directory; a missing default
// file is not an error and reports found=false. An explicitly named file must
// exist.
func LoadConfigFile(path string) (FileConfig, bool, error) {
	if path == "" {
		path = DefaultConfigFile
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, false, fmt.Errorf("read config file: %w", err)
	}

	var f FileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return FileConfig{}, false, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, true, nil
}

// Apply overlays the file's set values onto cfg.
func (f FileConfig) Apply(cfg AppConfig) AppConfig {
	var opts []AppConfigOption

	if f.Host != "" {
		opts = append(opts, WithHost(f.Host))
	}
	if f.Port != 0 {
		opts = append(opts, WithPort(f.Port))
	}
	if f.DBURL != "" {
		opts = append(opts, WithDBURL(f.DBURL))
	}
	if f.LogLevel != "" {
		opts = append(opts, WithLogLevel(f.LogLevel))
	}
	if f.LogFormat != "" {
		opts = append(opts, WithLogFormat(ParseLogFormat(f.LogFormat)))
	}
	if f.DefaultThreshold > 0 {
		opts = append(opts, WithDefaultThreshold(f.DefaultThreshold))
	}

	if eo := f.Embedding.options(); len(eo) > 0 {
		opts = append(opts, WithEmbeddingOptions(eo...))
	}
	if gh := f.GitHub.options(); len(gh) > 0 {
		opts = append(opts, WithGitHubOptions(gh...))
	}
	if ro := f.Refresh.options(); len(ro) > 0 {
		opts = append(opts, WithRefreshOptions(ro...))
	}

	return cfg.Apply(opts...)
}

func (e EmbeddingFile) options() []EndpointOption {
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
	if e.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(time.Duration(e.TimeoutSeconds*float64(time.Second))))
	}
	if e.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(e.MaxRetries))
	}
	return opts
}

func (g GitHubFile) options() []GitHubConfigOption {
	var opts []GitHubConfigOption
	if g.Token != "" {
		opts = append(opts, WithToken(g.Token))
	}
	if g.AppID != 0 {
		opts = append(opts, WithApp(g.AppID, g.InstallationID, g.PrivateKeyPath))
	}
	return opts
}

func (r RefreshFile) options() []RefreshConfigOption {
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
