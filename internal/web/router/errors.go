package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when no route matches a path
	ErrNotFound = errors.New("no route matches")

	// ErrDuplicateName is returned when two routes in one tree share a name
	ErrDuplicateName = errors.New("duplicate route name")

	// ErrNoReverseMatch is returned when a named route cannot be built
	ErrNoReverseMatch = errors.New("no reverse match")
)

// PatternError reports a malformed route pattern
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
	Path   string      `json:"path,omitempty"`
	Method string      `json:"method,omitempty"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler provides default error handlers
type ErrorHandler struct {
	// Include detailed errors in responses (disable in production)
	ShowDetails bool
	// Table is listed in detailed 404 responses
	Table *Table
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(showDetails bool) *ErrorHandler {
	return &ErrorHandler{
		ShowDetails: showDetails,
	}
}

// NotFoundHandler returns a handler for 404 Not Found errors. JSON clients get
// an ErrorResponse; everyone else a plain text page, listing the patterns
// tried when details are enabled.
func (eh *ErrorHandler) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tried []string
		if eh.ShowDetails && eh.Table != nil {
			for _, info := range eh.Table.Routes() {
				tried = append(tried, info.Pattern)
			}
		}

		if wantsJSON(r) {
			resp := ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "The requested resource was not found",
				},
				Status: http.StatusNotFound,
				Path:   r.URL.Path,
				Method: r.Method,
			}
			if eh.ShowDetails {
				resp.Error.Details = map[string]interface{}{
					"path":  r.URL.Path,
					"tried": tried,
				}
			}
			writeJSONError(w, http.StatusNotFound, resp)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Page not found: %s\n", r.URL.Path)
		if len(tried) > 0 {
			fmt.Fprintf(w, "\nURL patterns tried, in this order:\n")
			for _, p := range tried {
				fmt.Fprintf(w, "  %s\n", p)
			}
		}
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp) // Error is logged elsewhere
}
