package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithParams(target string, params Params) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(withMatch(req.Context(), &Match{Params: params}))
}

func TestParamExtractor_PathParams(t *testing.T) {
	id := uuid.New()
	p := NewParamExtractor(requestWithParams("/", Params{
		"pk":   5,
		"id":   id,
		"slug": "dune",
		"raw":  "17",
	}))

	pk, err := p.PathParamInt("pk")
	require.NoError(t, err)
	assert.Equal(t, 5, pk)

	pk64, err := p.PathParamInt64("raw")
	require.NoError(t, err)
	assert.Equal(t, int64(17), pk64)

	got, err := p.PathParamUUID("id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Equal(t, "dune", p.PathParam("slug"))
	assert.Equal(t, "5", p.PathParam("pk"))
	assert.Equal(t, "", p.PathParam("missing"))

	_, err = p.PathParamInt("missing")
	assert.Error(t, err)
	_, err = p.PathParamInt("slug")
	assert.Error(t, err)
	_, err = p.PathParamUUID("pk")
	assert.Error(t, err)
}

func TestParamExtractor_NoMatch(t *testing.T) {
	p := NewParamExtractor(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, ParamsFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))

	_, err := p.PathParamInt("pk")
	assert.Error(t, err)
}

func TestParamExtractor_Pagination(t *testing.T) {
	tests := []struct {
		target string
		page   int
		offset int
	}{
		{"/books/", 1, 0},
		{"/books/?page=3", 3, 20},
		{"/books/?page=0", 1, 0},
		{"/books/?page=x", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			p := NewParamExtractor(httptest.NewRequest(http.MethodGet, tt.target, nil))
			got := p.ExtractPagination(10)
			assert.Equal(t, tt.page, got.Page)
			assert.Equal(t, 10, got.PerPage)
			assert.Equal(t, tt.offset, got.Offset)
		})
	}
}

func TestParamsMerge(t *testing.T) {
	a := Params{"x": 1}
	merged := a.merge(Params{"y": 2})

	assert.Equal(t, Params{"x": 1, "y": 2}, merged)
	assert.Equal(t, Params{"x": 1}, a, "merge does not modify the receiver")

	var empty Params
	assert.Nil(t, empty.merge(nil))
}
