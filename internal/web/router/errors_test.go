package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundHandler_PlainText(t *testing.T) {
	eh := NewErrorHandler(true)
	eh.Table = libraryTable(t)

	rec := httptest.NewRecorder()
	eh.NotFoundHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent/path", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Page not found: /nonexistent/path")
	assert.Contains(t, rec.Body.String(), "/catalog/books/")
}

func TestNotFoundHandler_HidesPatterns(t *testing.T) {
	eh := NewErrorHandler(false)
	eh.Table = libraryTable(t)

	rec := httptest.NewRecorder()
	eh.NotFoundHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "patterns tried")
}

func TestNotFoundHandler_JSON(t *testing.T) {
	eh := NewErrorHandler(true)
	eh.Table = libraryTable(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	eh.NotFoundHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "/nope", resp.Path)
	assert.Contains(t, resp.Error.Details, "tried")
}

func TestPatternError(t *testing.T) {
	err := &PatternError{Pattern: "<bad", Reason: "unbalanced '<'"}
	assert.Equal(t, `invalid route pattern "<bad": unbalanced '<'`, err.Error())
}
