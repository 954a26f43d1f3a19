package middleware

import (
	"net/http"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// ProfileSource re-reads the caller's role from their profile.
type ProfileSource interface {
	RoleOf(r *http.Request) (enums.ProfileRole, error)
}

// RequireRole rejects callers whose profile does not carry role. The role
// is re-read through src when provided so revocations apply before the
// access token expires.
func RequireRole(role enums.ProfileRole, src ProfileSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := enums.ProfileRole(RoleFromContext(r.Context()))
			if src != nil {
				fresh, err := src.RoleOf(r)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				current = fresh
			}
			if current != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveRole replaces the token's role claim on the request identity with
// the one currently on the caller's profile, so ownership overrides and
// admin checks agree after a role change.
func ResolveRole(src ProfileSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || src == nil {
				next.ServeHTTP(w, r)
				return
			}
			role, err := src.RoleOf(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if role != identity.Role {
				identity.Role = role
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}
