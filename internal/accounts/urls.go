package accounts

import (
	"net/http"

	"github.com/conduit-lang/locallibrary/internal/web/middleware"
	"github.com/conduit-lang/locallibrary/internal/web/router"
)

// URLs returns the accounts route table, included under accounts/. limit
// throttles login attempts and may be nil.
func URLs(h *Handlers, limit middleware.Middleware) (*router.Table, error) {
	var login http.Handler = http.HandlerFunc(h.Login)
	if limit != nil {
		login = limit(login)
	}
	return router.NewTable(
		router.Path("login/", login, "login"),
		router.PathFunc("logout/", h.Logout, "logout"),
		router.Path("password_change/", h.sessions.RequireLogin(http.HandlerFunc(h.PasswordChange)), "password_change"),
		router.Path("password_change/done/", h.sessions.RequireLogin(http.HandlerFunc(h.PasswordChangeDone)), "password_change_done"),
	)
}
