// Package main is the entry point for the dupdex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dupdex/dupdex/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dupdex",
		Short: "Dupdex duplicate issue detection server",
		Long:  `Dupdex keeps a cache of issue embeddings per repository and finds likely duplicate issues by semantic similarity.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from the optional YAML config file, the
// .env file, and environment variables.
func loadConfig(envFile, configFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile, configFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
