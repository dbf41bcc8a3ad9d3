// Package apierror defines the error body every endpoint answers with:
// {"ok": false, "error": {"code", "message", "details"}}.
package apierror

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// Error is an API error with the HTTP status it is sent with.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// WithDetails replaces the field details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// ToJSON renders the error envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(struct {
		OK    bool   `json:"ok"`
		Error *Error `json:"error"`
	}{Error: e})
	return data
}

type class struct {
	status   int
	code     string
	fallback string
}

var (
	badRequest      = class{http.StatusBadRequest, "BAD_REQUEST", "Bad request"}
	invalid         = class{http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request"}
	unauthorized    = class{http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"}
	notFound        = class{http.StatusNotFound, "NOT_FOUND", "Resource not found"}
	tooLarge        = class{http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Payload too large"}
	rateLimited     = class{http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded"}
	internal        = class{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	notImplemented  = class{http.StatusNotImplemented, "NOT_IMPLEMENTED", "Not available in memory mode"}
	unavailableCls  = class{http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable"}
)

func (c class) new(message string) *Error {
	if message == "" {
		message = c.fallback
	}
	return &Error{StatusCode: c.status, Code: c.code, Message: message}
}

// BadRequest is a 400 for malformed input.
func BadRequest(message string) *Error { return badRequest.new(message) }

// ValidationError is a 400 carrying per-field details.
func ValidationError(message string, details ...FieldError) *Error {
	return invalid.new(message).WithDetails(details...)
}

// Unauthorized is a 401 for a missing or wrong secret.
func Unauthorized(message string) *Error { return unauthorized.new(message) }

func NotFound(message string) *Error { return notFound.new(message) }

// PayloadTooLarge is a 413 for bodies over the endpoint limit.
func PayloadTooLarge(message string) *Error { return tooLarge.new(message) }

// TooManyRequests is a 429 from the ingest rate limiter.
func TooManyRequests(message string) *Error { return rateLimited.new(message) }

func InternalError(message string) *Error { return internal.new(message) }

// NotImplemented is a 501 for features that need the durable store.
func NotImplemented(message string) *Error { return notImplemented.new(message) }

func ServiceUnavailable(message string) *Error { return unavailableCls.new(message) }
