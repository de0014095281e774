package main

import (
	"github.com/dupdex/dupdex"
	"github.com/dupdex/dupdex/internal/config"
	"github.com/dupdex/dupdex/internal/log"
)

// clientOptions builds the dupdex client options from loaded configuration.
func clientOptions(cfg config.AppConfig, logger *log.Logger) []dupdex.Option {
	opts := []dupdex.Option{
		dupdex.WithDBURL(cfg.DBURL()),
		dupdex.WithOpenAIEndpoint(cfg.EmbeddingEndpoint()),
		dupdex.WithRefreshConfig(cfg.Refresh()),
		dupdex.WithDefaultThreshold(cfg.DefaultThreshold()),
		dupdex.WithLogger(logger),
	}

	github := cfg.GitHub()
	if github.HasApp() {
		opts = append(opts, dupdex.WithGitHubApp(github.AppID(), github.InstallationID(), github.PrivateKeyPath()))
	} else if github.Token() != "" {
		opts = append(opts, dupdex.WithGitHubToken(github.Token()))
	}

	return opts
}
