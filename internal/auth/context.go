// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the signed-in user

package auth

import (
	"context"
)

// userContextKey is the key type for storing the User in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the user attached.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext retrieves the user from the context, returning nil if not present.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}

// MustUserFromContext retrieves the user from the context, panicking if not present.
func MustUserFromContext(ctx context.Context) *User {
	u := UserFromContext(ctx)
	if u == nil {
		panic("auth: User not found in context")
	}
	return u
}
