package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"vinzhub-stats-api/pkg/apierror"
)

func TestOK(t *testing.T) {
	rr := httptest.NewRecorder()

	OK(rr, Ack{OK: true, Mode: "memory"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"mode":"memory"}`, rr.Body.String())
}

func TestError_APIError(t *testing.T) {
	rr := httptest.NewRecorder()

	Error(rr, fmt.Errorf("wrapped: %w", apierror.BadRequest("no metrics provided")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":{"code":"BAD_REQUEST","message":"no metrics provided"}}`, rr.Body.String())
}

func TestError_PlainErrorBecomes500(t *testing.T) {
	rr := httptest.NewRecorder()

	Error(rr, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rr.Body.String(), "boom")
}
