// Package handler holds the HTTP handlers. Handlers translate between HTTP
// and the service layer; they never see absorbed backend errors.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"vinzhub-stats-api/internal/repository"
	"vinzhub-stats-api/internal/service"
	"vinzhub-stats-api/pkg/apierror"
	"vinzhub-stats-api/pkg/response"
)

// maxIngestBytes bounds an ingest body.
const maxIngestBytes = 64 * 1024

// A single validator instance is shared because it caches struct parsing.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// validateStruct runs the validator and maps failures to a 400 with one
// detail per field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apierror.FieldError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}
	return apierror.ValidationError("invalid request", details...)
}

// readBody reads at most limit bytes, answering 413 past the limit.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierror.PayloadTooLarge(fmt.Sprintf("body exceeds %d bytes", limit))
		}
		return nil, apierror.BadRequest("failed to read request body")
	}
	return body, nil
}

// decodeObject decodes a JSON object body, keeping numbers as json.Number.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, apierror.BadRequest("body must be a JSON object")
	}
	return fields, nil
}

// serviceError maps service and repository errors onto API errors.
func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrNoMetrics):
		return apierror.BadRequest("no metrics provided")
	case errors.Is(err, service.ErrInvalidDate):
		return apierror.ValidationError("invalid request", apierror.FieldError{Field: "date", Message: "expected YYYY-MM-DD"})
	case errors.Is(err, service.ErrInvalidMetric):
		return apierror.ValidationError("invalid request", apierror.FieldError{Field: "metric", Message: "expected honey or pollen"})
	case errors.Is(err, service.ErrDurableRequired):
		return apierror.NotImplemented("requires a database backend")
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("")
	}
	return apierror.InternalError("")
}

// writeServiceError logs unexpected failures before answering.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	apiErr := serviceError(err)
	var e *apierror.Error
	if errors.As(apiErr, &e) && e.StatusCode >= http.StatusInternalServerError && e.StatusCode != http.StatusNotImplemented {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	response.Error(w, apiErr)
}
