// Package v1 implements the versioned HTTP API routes.
package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/infrastructure/api/middleware"
	"github.com/dupdex/dupdex/infrastructure/api/v1/dto"
	"github.com/dupdex/dupdex/internal/log"
)

// Refresher synchronizes a repository's embedding cache.
type Refresher interface {
	Refresh(ctx context.Context, repository string, force bool) (service.RefreshResult, error)
}

// DuplicateFinder answers duplicate queries from the cache.
type DuplicateFinder interface {
	Find(ctx context.Context, repository string, number int, opts ...service.FindOption) (search.Report, error)
}

// RefreshRouter handles the refresh endpoint.
type RefreshRouter struct {
	refresher Refresher
	logger    *log.Logger
}

// NewRefreshRouter creates a new RefreshRouter.
func NewRefreshRouter(refresher Refresher, logger *log.Logger) *RefreshRouter {
	if logger == nil {
		logger = log.Default()
	}
	return &RefreshRouter{refresher: refresher, logger: logger}
}

// Routes returns the chi router for refresh endpoints.
func (r *RefreshRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Refresh)

	return router
}

// Refresh handles POST /api/v1/refresh.
func (r *RefreshRouter) Refresh(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := r.refresher.Refresh(ctx, body.Repo, body.Force)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.RefreshResponse{
		Repo:      body.Repo,
		Processed: result.Processed(),
		Failed:    result.Failed(),
	})
}
