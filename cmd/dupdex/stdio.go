package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dupdex/dupdex"
	"github.com/dupdex/dupdex/internal/log"
	"github.com/dupdex/dupdex/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This exposes the refresh and duplicates tools to AI assistants.
Configuration is loaded from a dupdex.yaml config file, environment
variables, and a .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile, configFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file (default: dupdex.yaml if present)")

	return cmd
}

func runStdio(envFile, configFile string) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	logger := log.New(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
	logger.Info("starting MCP server", "version", version)

	client, err := dupdex.New(clientOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("create dupdex client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close dupdex client", "error", err)
		}
	}()

	mcpServer := mcp.NewServer(client.Refresh, client.Duplicates, version)
	return mcpServer.ServeStdio()
}
