package middleware

import (
	"net/http"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"

	"vinzhub-stats-api/internal/metrics"
)

// Metrics records request counts and latency per route pattern, so
// /api/player/{publicId}/stats is one series regardless of the id.
func Metrics(m metrics.Provider, clock quartz.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clock.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			endpoint := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			m.IncRequestsTotal(endpoint, wrapped.statusCode)
			m.ObserveRequestDuration(endpoint, clock.Since(start))
		})
	}
}
