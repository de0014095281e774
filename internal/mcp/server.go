// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/search"
)

// Refresher synchronizes a repository's embedding cache for MCP tools.
type Refresher interface {
	Refresh(ctx context.Context, repository string, force bool) (service.RefreshResult, error)
}

// DuplicateFinder answers duplicate queries for MCP tools.
type DuplicateFinder interface {
	Find(ctx context.Context, repository string, number int, opts ...service.FindOption) (search.Report, error)
}

// Server wraps the MCP server with the duplicate detection tools.
type Server struct {
	mcpServer  *server.MCPServer
	refresher  Refresher
	duplicates DuplicateFinder
	version    string
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(refresher Refresher, duplicates DuplicateFinder, version string) *Server {
	s := &Server{
		refresher:  refresher,
		duplicates: duplicates,
		version:    version,
	}

	mcpServer := server.NewMCPServer(
		"dupdex",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all dupdex tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	refreshTool := mcp.NewTool("refresh",
		mcp.WithDescription("Synchronize the cached issue embeddings for a repository with the issue tracker"),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository in owner/name form"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Rebuild the whole cache instead of an incremental update"),
		),
	)
	mcpServer.AddTool(refreshTool, s.handleRefresh)

	duplicatesTool := mcp.NewTool("duplicates",
		mcp.WithDescription("Find likely duplicates of an issue among the cached open issues of its repository"),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository in owner/name form"),
		),
		mcp.WithNumber("issue_number",
			mcp.Required(),
			mcp.Description("Target issue number"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum similarity score in [0,1] (default: 0.9)"),
		),
	)
	mcpServer.AddTool(duplicatesTool, s.handleDuplicates)
}

// handleRefresh handles the refresh tool invocation.
func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("repo is required"), nil
	}
	force := request.GetBool("force", false)

	result, err := s.refresher.Refresh(ctx, repo, force)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}

	type refreshResult struct {
		Repo      string `json:"repo"`
		Processed int    `json:"processed"`
		Failed    int    `json:"failed"`
	}

	jsonBytes, err := json.Marshal(refreshResult{
		Repo:      repo,
		Processed: result.Processed(),
		Failed:    result.Failed(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleDuplicates handles the duplicates tool invocation.
func (s *Server) handleDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("repo is required"), nil
	}
	number, err := request.RequireInt("issue_number")
	if err != nil {
		return mcp.NewToolResultError("issue_number is required"), nil
	}

	// An absent threshold means "use the default"; a present one is always
	// forwarded so out-of-range values fail validation instead of being
	// silently replaced.
	var opts []service.FindOption
	if _, ok := request.GetArguments()["threshold"]; ok {
		opts = append(opts, service.WithThreshold(request.GetFloat("threshold", 0)))
	}

	report, err := s.duplicates.Find(ctx, repo, number, opts...)
	if err != nil {
		if errors.Is(err, service.ErrNotIndexed) {
			return mcp.NewToolResultError(fmt.Sprintf("issue %s#%d is not indexed; run the refresh tool first", repo, number)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("duplicate search failed: %v", err)), nil
	}

	type matchResult struct {
		Number int     `json:"number"`
		Title  string  `json:"title"`
		Score  float64 `json:"score"`
	}
	type duplicatesResult struct {
		Repo    string        `json:"repo"`
		Number  int           `json:"issue_number"`
		Matches []matchResult `json:"matches"`
	}

	matches := report.Matches()
	out := duplicatesResult{
		Repo:    repo,
		Number:  report.Number(),
		Matches: make([]matchResult, len(matches)),
	}
	for i, m := range matches {
		out.Matches[i] = matchResult{Number: m.Number(), Title: m.Title(), Score: m.Score()}
	}

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
