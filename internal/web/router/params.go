package router

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Params holds converted path parameters: string for str, slug and path,
// int for int and uuid.UUID for uuid
type Params map[string]any

func (p Params) merge(other Params) Params {
	if len(other) == 0 {
		return p
	}
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// ParamsFromRequest returns the path parameters of the matched route
func ParamsFromRequest(req *http.Request) Params {
	if m, ok := MatchFromContext(req.Context()); ok {
		return m.Params
	}
	return nil
}

// ParamExtractor provides utilities for extracting and converting parameters
type ParamExtractor struct {
	req    *http.Request
	params Params
}

// NewParamExtractor creates a new parameter extractor for the given request
func NewParamExtractor(req *http.Request) *ParamExtractor {
	return &ParamExtractor{req: req, params: ParamsFromRequest(req)}
}

// PathParam extracts a path parameter by name as a string
func (p *ParamExtractor) PathParam(name string) string {
	v, ok := p.params[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// PathParamInt extracts an int path parameter
func (p *ParamExtractor) PathParamInt(name string) (int, error) {
	v, ok := p.params[name]
	if !ok {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for parameter %s: %w", name, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %s is %T, not int", name, v)
	}
}

// PathParamInt64 extracts an int path parameter as int64
func (p *ParamExtractor) PathParamInt64(name string) (int64, error) {
	i, err := p.PathParamInt(name)
	return int64(i), err
}

// PathParamUUID extracts a uuid path parameter
func (p *ParamExtractor) PathParamUUID(name string) (uuid.UUID, error) {
	v, ok := p.params[name]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing path parameter: %s", name)
	}
	switch val := v.(type) {
	case uuid.UUID:
		return val, nil
	case string:
		id, err := uuid.Parse(val)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid UUID for parameter %s: %w", name, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("parameter %s is %T, not uuid", name, v)
	}
}

// QueryParam extracts a query parameter by name
func (p *ParamExtractor) QueryParam(name string) string {
	return p.req.URL.Query().Get(name)
}

// QueryParamInt extracts a query parameter and converts it to int
func (p *ParamExtractor) QueryParamInt(name string, defaultValue int) int {
	value := p.req.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return i
}

// PaginationParams extracts common pagination parameters
type PaginationParams struct {
	Page    int
	PerPage int
	Offset  int
}

// ExtractPagination reads the page query parameter. Pages start at 1.
func (p *ParamExtractor) ExtractPagination(perPage int) PaginationParams {
	page := p.QueryParamInt("page", 1)
	if page < 1 {
		page = 1
	}

	return PaginationParams{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
	}
}
