package auth

import (
	"context"
)

// User is the authenticated principal carried through a request
type User struct {
	ID       int64
	Username string
	IsStaff  bool
	IsActive bool
}

type userKey struct{}

// CurrentUser returns the authenticated user, or nil for anonymous requests
func CurrentUser(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// SetCurrentUser adds the user to the context
func SetCurrentUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}
