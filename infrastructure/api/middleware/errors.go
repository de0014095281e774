package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dupdex/dupdex/application/service"
	"github.com/dupdex/dupdex/infrastructure/tracker"
	"github.com/dupdex/dupdex/internal/log"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a service error to an HTTP status and writes the JSON
// error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "status", status, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}

	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRepository),
		errors.Is(err, service.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotIndexed),
		errors.Is(err, tracker.ErrRepositoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRefreshInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
