package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppHandler_UnsupportedAccept(t *testing.T) {
	invoked := false
	handler := AppHandler(func(w http.ResponseWriter, r *http.Request) *AppError {
		invoked = true
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Accept", "text/xml")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	// the wrapped operation never ran
	assert.False(t, invoked)
}

func TestAppHandler_RendersAppError(t *testing.T) {
	handler := AppHandler(func(w http.ResponseWriter, r *http.Request) *AppError {
		return &AppError{
			Message: "transaction not found",
			Code:    http.StatusNotFound,
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("content-type"))
	assert.Contains(t, rr.Body.String(), "transaction not found")
}
