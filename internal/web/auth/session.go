package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"go.uber.org/zap"
)

// DefaultCookieName is the name of the session cookie
const DefaultCookieName = "sessionid"

// UserLoader loads the current state of a user named by a session token
type UserLoader interface {
	LoadUser(ctx context.Context, id int64) (*User, error)
}

// UserLoaderFunc adapts a function to UserLoader
type UserLoaderFunc func(ctx context.Context, id int64) (*User, error)

func (f UserLoaderFunc) LoadUser(ctx context.Context, id int64) (*User, error) { return f(ctx, id) }

// SessionConfig configures the cookie session
type SessionConfig struct {
	Tokens     *TokenService
	Users      UserLoader
	CookieName string
	// Secure marks the cookie HTTPS-only
	Secure bool
	// LoginURL is where RequireLogin sends anonymous visitors
	LoginURL string
}

// Sessions keeps the logged-in user in a signed cookie
type Sessions struct {
	config SessionConfig
}

// NewSessions creates the cookie session manager
func NewSessions(config SessionConfig) (*Sessions, error) {
	if config.Tokens == nil {
		return nil, errors.New("sessions require a token service")
	}
	if config.Users == nil {
		return nil, errors.New("sessions require a user loader")
	}
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.LoginURL == "" {
		config.LoginURL = "/accounts/login/"
	}
	return &Sessions{config: config}, nil
}

// LoginURL returns the configured login page
func (s *Sessions) LoginURL() string {
	return s.config.LoginURL
}

// Login issues a session cookie for u
func (s *Sessions) Login(w http.ResponseWriter, u *User) error {
	token, err := s.config.Tokens.GenerateToken(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout clears the session cookie
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware puts the user named by a valid session cookie into the request
// context. Invalid cookies and inactive users leave the request anonymous.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := s.authenticate(r); u != nil {
			r = r.WithContext(SetCurrentUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sessions) authenticate(r *http.Request) *User {
	cookie, err := r.Cookie(s.config.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	logger := webcontext.Logger(r.Context())
	claims, err := s.config.Tokens.ValidateToken(cookie.Value)
	if err != nil {
		logger.Debug("rejected session cookie", zap.Error(err))
		return nil
	}
	id, err := claims.UserID()
	if err != nil {
		logger.Debug("rejected session cookie", zap.Error(err))
		return nil
	}

	u, err := s.config.Users.LoadUser(r.Context(), id)
	if err != nil {
		logger.Warn("session user lookup failed", zap.Int64("user_id", id), zap.Error(err))
		return nil
	}
	if u == nil || !u.IsActive {
		return nil
	}
	return u
}

// RequireLogin redirects anonymous requests to the login page with a next
// parameter pointing back at the requested URL
func (s *Sessions) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			http.Redirect(w, r, s.loginRedirect(r), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff is RequireLogin for staff members. Logged-in users without
// staff status are also sent to the login page.
func (s *Sessions) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := CurrentUser(r.Context()); u == nil || !u.IsStaff {
			http.Redirect(w, r, s.loginRedirect(r), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginRedirect prefers the original request line, since mounted handlers
// see a rewritten URL.Path
func (s *Sessions) loginRedirect(r *http.Request) string {
	next := r.RequestURI
	if next == "" {
		next = r.URL.RequestURI()
	}
	return s.config.LoginURL + "?" + url.Values{"next": {next}}.Encode()
}

// SafeNext returns next when it is a local absolute path, else fallback.
// Protocol-relative and absolute URLs are refused.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
