package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dupdex/dupdex"
	"github.com/dupdex/dupdex/infrastructure/api"
	"github.com/dupdex/dupdex/internal/config"
	"github.com/dupdex/dupdex/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. YAML config file (if --config specified or dupdex.yaml exists in current directory)
  3. .env file (if --env-file specified or .env exists in current directory)
  4. Environment variables
  5. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DB_URL                       Database URL (default: sqlite:///dupdex.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  DEFAULT_THRESHOLD            Similarity threshold in [0,1] (default: 0.9)

  EMBEDDING_ENDPOINT_*         Embedding service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (default: text-embedding-3-small)
    API_KEY                    API key for authentication
    DIMENSIONS                 Vector dimensionality (default: 768)
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  GITHUB_TOKEN                 Personal access token for GitHub
  GITHUB_APP_ID                GitHub App ID (with INSTALLATION_ID and PRIVATE_KEY_PATH)
  GITHUB_INSTALLATION_ID       GitHub App installation ID
  GITHUB_PRIVATE_KEY_PATH      GitHub App private key file

  REFRESH_PARALLELISM          Concurrent embedding workers (default: 4)
  REFRESH_BATCH_SIZE           Issues per persistence batch (default: 25)
  REFRESH_EMBED_TIMEOUT_SECONDS  Per-issue embedding timeout (default: 120)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, configFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file (default: dupdex.yaml if present)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, configFile, host string, port int) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.Configure(cfg.LogFormat(), cfg.LogLevel())
	logger.Info("starting dupdex", "version", version, "db_url", cfg.DBURL())

	client, err := dupdex.New(clientOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("create dupdex client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close dupdex client", "error", err)
		}
	}()

	apiServer := api.NewAPIServer(client.Refresh, client.Duplicates, version, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Host(), cfg.Port())
	if err := apiServer.ListenAndServe(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}
	return cfg.Apply(opts...)
}
