package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dupdex/dupdex/internal/log"
)

// CorrelationHeader carries the client-supplied correlation ID.
const CorrelationHeader = "X-Correlation-ID"

// Correlation returns a middleware that propagates the request's correlation
// ID into the context and response, generating one when absent.
func Correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" {
				id = uuid.NewString()
			}

			ctx := log.WithCorrelationID(r.Context(), id)
			w.Header().Set(CorrelationHeader, id)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
