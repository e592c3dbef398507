package middleware

import (
	"context"

	"github.com/showtixhq/showtix-backend/pkg/auth"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity injects the authenticated caller into the context.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext recovers the caller seeded by the Auth middleware.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return identity, ok
}
