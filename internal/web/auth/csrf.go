package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrCSRFTokenMissing is returned when an unsafe request carries no token
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid is returned when the submitted token does not match the cookie
	ErrCSRFTokenInvalid = errors.New("CSRF token incorrect")
)

const csrfTokenBytes = 32

// CSRFConfig configures CSRF protection. The token lives in its own cookie
// and unsafe requests must echo it in a form field or header.
type CSRFConfig struct {
	CookieName string
	// Secure marks the cookie HTTPS-only
	Secure bool
	// MaxAge is the cookie lifetime
	MaxAge      time.Duration
	TokenHeader string
	TokenField  string
	// SafeMethods are HTTP methods that don't require a token
	SafeMethods []string

	// ErrorHandler is called when validation fails
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// DefaultCSRFConfig returns default CSRF configuration
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		CookieName:  "csrftoken",
		MaxAge:      365 * 24 * time.Hour,
		TokenHeader: "X-CSRFToken",
		TokenField:  "csrfmiddlewaretoken",
		SafeMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "CSRF verification failed. Request aborted. "+err.Error()+".", http.StatusForbidden)
		},
	}
}

type csrfKey struct{}

// CSRFToken returns the token for the current request, for embedding in forms
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

// CSRF issues a token cookie on first visit and rejects unsafe requests whose
// submitted token does not match it
func CSRF(config CSRFConfig) func(http.Handler) http.Handler {
	defaults := DefaultCSRFConfig()
	if config.CookieName == "" {
		config.CookieName = defaults.CookieName
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	if config.TokenHeader == "" {
		config.TokenHeader = defaults.TokenHeader
	}
	if config.TokenField == "" {
		config.TokenField = defaults.TokenField
	}
	if config.SafeMethods == nil {
		config.SafeMethods = defaults.SafeMethods
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaults.ErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expected := ""
			if c, err := r.Cookie(config.CookieName); err == nil && wellFormed(c.Value) {
				expected = c.Value
			}

			if !isSafe(r.Method, config.SafeMethods) {
				if expected == "" {
					config.ErrorHandler(w, r, ErrCSRFTokenMissing)
					return
				}
				token := extractCSRFToken(r, config)
				if token == "" {
					config.ErrorHandler(w, r, ErrCSRFTokenMissing)
					return
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
					config.ErrorHandler(w, r, ErrCSRFTokenInvalid)
					return
				}
			}

			if expected == "" {
				token, err := generateCSRFToken()
				if err != nil {
					config.ErrorHandler(w, r, err)
					return
				}
				expected = token
				http.SetCookie(w, &http.Cookie{
					Name:     config.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(config.MaxAge.Seconds()),
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, expected)))
		})
	}
}

func isSafe(method string, safe []string) bool {
	for _, m := range safe {
		if method == m {
			return true
		}
	}
	return false
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func wellFormed(token string) bool {
	b, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(b) == csrfTokenBytes
}

// extractCSRFToken reads the header first, then the form field
func extractCSRFToken(r *http.Request, config CSRFConfig) string {
	if token := r.Header.Get(config.TokenHeader); token != "" {
		return token
	}
	return r.PostFormValue(config.TokenField)
}
