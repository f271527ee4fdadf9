package accounts

import (
	"errors"
	"net/http"

	"github.com/conduit-lang/locallibrary/internal/web/auth"
	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"github.com/conduit-lang/locallibrary/internal/web/render"
	"go.uber.org/zap"
)

// LoginRedirectURL is where a login without a next parameter lands
const LoginRedirectURL = "/catalog/"

// Handlers serves the accounts pages
type Handlers struct {
	users    *Users
	sessions *auth.Sessions
	render   *render.Renderer
}

// NewHandlers creates the accounts handlers
func NewHandlers(users *Users, sessions *auth.Sessions, renderer *render.Renderer) *Handlers {
	return &Handlers{users: users, sessions: sessions, render: renderer}
}

type loginForm struct {
	Username string
	Next     string
	Error    string
}

// Login shows the login form and checks submitted credentials
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render.Render(w, r, http.StatusOK, "accounts/login.html", loginForm{Next: r.URL.Query().Get("next")})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, "GET, HEAD, POST")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := loginForm{Username: r.PostFormValue("username"), Next: r.PostFormValue("next")}

	u, err := h.users.Authenticate(r.Context(), form.Username, r.PostFormValue("password"))
	if errors.Is(err, ErrInvalidCredentials) {
		webcontext.Logger(r.Context()).Info("login failed", zap.String("username", form.Username))
		form.Error = "Your username and password didn't match. Please try again."
		h.render.Render(w, r, http.StatusOK, "accounts/login.html", form)
		return
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	if err := h.sessions.Login(w, u.Principal()); err != nil {
		h.render.Error(w, r, err)
		return
	}
	webcontext.Logger(r.Context()).Info("login", zap.Int64("user_id", u.ID))
	http.Redirect(w, r, auth.SafeNext(form.Next, LoginRedirectURL), http.StatusFound)
}

// Logout clears the session. Only POST logs out.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	h.sessions.Logout(w)
	h.render.Render(w, r, http.StatusOK, "accounts/logged_out.html", nil)
}

type passwordChangeForm struct {
	Errors []string
}

// PasswordChange lets the logged-in user set a new password
func (h *Handlers) PasswordChange(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render.Render(w, r, http.StatusOK, "accounts/password_change.html", passwordChangeForm{})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, "GET, HEAD, POST")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	current := auth.CurrentUser(r.Context())
	oldPassword := r.PostFormValue("old_password")
	newPassword := r.PostFormValue("new_password1")

	var form passwordChangeForm
	if _, err := h.users.Authenticate(r.Context(), current.Username, oldPassword); err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.render.Error(w, r, err)
			return
		}
		form.Errors = append(form.Errors, "Your old password was entered incorrectly. Please enter it again.")
	}
	if newPassword != r.PostFormValue("new_password2") {
		form.Errors = append(form.Errors, "The two password fields didn't match.")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		form.Errors = append(form.Errors, err.Error())
	}
	if len(form.Errors) > 0 {
		h.render.Render(w, r, http.StatusOK, "accounts/password_change.html", form)
		return
	}

	if err := h.users.SetPassword(r.Context(), current.ID, newPassword); err != nil {
		h.render.Error(w, r, err)
		return
	}
	// Reissue the cookie so the session outlives the change
	if err := h.sessions.Login(w, current); err != nil {
		h.render.Error(w, r, err)
		return
	}
	webcontext.Logger(r.Context()).Info("password changed", zap.Int64("user_id", current.ID))
	http.Redirect(w, r, "done/", http.StatusFound)
}

// PasswordChangeDone confirms a password change
func (h *Handlers) PasswordChangeDone(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "accounts/password_change_done.html", nil)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
