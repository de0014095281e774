package v1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/infrastructure/api/middleware"
	"github.com/dupdex/dupdex/infrastructure/api/v1/dto"
	"github.com/dupdex/dupdex/internal/log"
)

// DuplicatesRouter handles the duplicates endpoint.
type DuplicatesRouter struct {
	finder DuplicateFinder
	logger *log.Logger
}

// NewDuplicatesRouter creates a new DuplicatesRouter.
func NewDuplicatesRouter(finder DuplicateFinder, logger *log.Logger) *DuplicatesRouter {
	if logger == nil {
		logger = log.Default()
	}
	return &DuplicatesRouter{finder: finder, logger: logger}
}

// Routes returns the chi router for duplicates endpoints.
func (r *DuplicatesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Duplicates)

	return router
}

// Duplicates handles GET /api/v1/duplicates.
func (r *DuplicatesRouter) Duplicates(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	query := req.URL.Query()

	repo := query.Get("repo")
	number, err := strconv.Atoi(query.Get("issue_number"))
	if err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "issue_number must be an integer"})
		return
	}

	var opts []service.FindOption
	if raw := query.Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "threshold must be a number"})
			return
		}
		opts = append(opts, service.WithThreshold(threshold))
	}

	report, err := r.finder.Find(ctx, repo, number, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	matches := report.Matches()
	response := dto.DuplicatesResponse{
		Repo:    report.Repo().String(),
		Number:  report.Number(),
		Matches: make([]dto.MatchSchema, len(matches)),
	}
	for i, m := range matches {
		response.Matches[i] = dto.MatchSchema{Number: m.Number(), Title: m.Title(), Score: m.Score()}
	}

	middleware.WriteJSON(w, http.StatusOK, response)
}
