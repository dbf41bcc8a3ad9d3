package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// RateLimitByUserKey limits each user key to perMinute requests. It must run
// after RequireIdentity. A limit of 0 or less disables it.
func RateLimitByUserKey(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return GetUserKey(r.Context()), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, apierror.TooManyRequests("ingest rate limit exceeded"))
		}),
	)
}
