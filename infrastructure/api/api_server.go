package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dupdex/dupdex/infrastructure/api/middleware"
	v1 "github.com/dupdex/dupdex/infrastructure/api/v1"
	mcpinternal "github.com/dupdex/dupdex/internal/mcp"
	"github.com/dupdex/dupdex/internal/log"
)

// APIServer exposes the duplicate detection services over HTTP, including
// the MCP endpoint.
type APIServer struct {
	refresher  v1.Refresher
	duplicates v1.DuplicateFinder
	version    string
	server     *Server
	router     chi.Router
	logger     *log.Logger
}

// NewAPIServer creates a new APIServer wired to the given services.
func NewAPIServer(refresher v1.Refresher, duplicates v1.DuplicateFinder, version string, logger *log.Logger) *APIServer {
	if logger == nil {
		logger = log.Default()
	}
	return &APIServer{
		refresher:  refresher,
		duplicates: duplicates,
		version:    version,
		logger:     logger,
	}
}

// mountRoutes wires up all routes on the given router.
func (a *APIServer) mountRoutes(router chi.Router) {
	router.Use(middleware.Correlation())
	router.Use(middleware.Logging(a.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.CorrelationHeader},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": a.version,
		})
	})

	refreshRouter := v1.NewRefreshRouter(a.refresher, a.logger)
	duplicatesRouter := v1.NewDuplicatesRouter(a.duplicates, a.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(10 * time.Minute))

		r.Mount("/refresh", refreshRouter.Routes())
		r.Mount("/duplicates", duplicatesRouter.Routes())
	})

	// The MCP endpoint streams responses and manages its own session state,
	// so no timeout middleware is applied here.
	mcpSrv := mcpinternal.NewServer(a.refresher, a.duplicates, a.version)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	srv := NewServer(addr, a.logger)
	a.server = &srv

	a.mountRoutes(srv.Router())
	return srv.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the full route tree as an http.Handler for use with custom
// servers and tests.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.router = chi.NewRouter()
		a.mountRoutes(a.router)
	}
	return a.router
}
