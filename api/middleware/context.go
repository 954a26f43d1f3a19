package middleware

import (
	"context"

	"github.com/abundantshare/share-backend/internal/auth"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the caller placed there by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok && id.UserID != ""
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return string(id.Role)
}

// WithIdentity injects an authenticated caller into the context.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}
