package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

const (
	// HeaderUserKey scopes every read and write to one caller.
	HeaderUserKey = "X-User-Key"
	// HeaderWriteKey carries the shared write secret.
	HeaderWriteKey = "X-Write-Key"
	// HeaderReadKey carries the shared read secret.
	HeaderReadKey = "X-Read-Key"
	// HeaderLoginKey carries the admin secret.
	HeaderLoginKey = "X-Login-Key"

	// MaxUserKeyLength matches the width of the user_key columns.
	MaxUserKeyLength = 128
)

// UserKeyKey is the context key for the caller's user key.
const UserKeyKey contextKey = "user_key"

// AuthConfig holds the shared secrets checked by the auth middleware.
type AuthConfig struct {
	WriteKey string
	ReadKey  string
	LoginKey string

	// ReadKeyConfigured enables the read policy and the player roster.
	ReadKeyConfigured bool
}

// Auth builds the header checks for the route groups.
type Auth struct {
	cfg AuthConfig
}

// NewAuth creates the auth middleware set.
func NewAuth(cfg AuthConfig) *Auth {
	return &Auth{cfg: cfg}
}

// RequireIdentity rejects requests without a usable X-User-Key and stores it
// in the request context.
func (a *Auth) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userKey := strings.TrimSpace(r.Header.Get(HeaderUserKey))
		if userKey == "" {
			response.Error(w, apierror.BadRequest("missing X-User-Key header"))
			return
		}
		if len(userKey) > MaxUserKeyLength {
			response.Error(w, apierror.BadRequest("X-User-Key header is too long"))
			return
		}

		ctx := context.WithValue(r.Context(), UserKeyKey, userKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireWriteKey always compares X-Write-Key against the write secret,
// including when the secret is still the placeholder. An empty secret
// rejects every write.
func (a *Auth) RequireWriteKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.WriteKey == "" || !secretMatches(r.Header.Get(HeaderWriteKey), a.cfg.WriteKey) {
			response.Error(w, apierror.Unauthorized("invalid write key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ReadPolicy checks X-Read-Key only when a real read secret is configured.
func (a *Auth) ReadPolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ReadKeyConfigured && !secretMatches(r.Header.Get(HeaderReadKey), a.cfg.ReadKey) {
			response.Error(w, apierror.Unauthorized("invalid read key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireReadConfigured hides a route entirely until a read secret is set.
func (a *Auth) RequireReadConfigured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.ReadKeyConfigured {
			response.Error(w, apierror.NotFound("not found"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLoginKey guards admin routes. With no login key configured the
// routes are unreachable.
func (a *Auth) RequireLoginKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.LoginKey == "" || !secretMatches(r.Header.Get(HeaderLoginKey), a.cfg.LoginKey) {
			response.Error(w, apierror.Unauthorized("invalid login key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// GetUserKey retrieves the caller's user key from context.
func GetUserKey(ctx context.Context) string {
	if key, ok := ctx.Value(UserKeyKey).(string); ok {
		return key
	}
	return ""
}
