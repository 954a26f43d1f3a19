package middleware

import (
	"net/http"
	"strings"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/internal/auth"
	pkgAuth "github.com/abundantshare/share-backend/pkg/auth"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/config"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// AuthOptions toggles acceptance of the fabricated development identity.
type AuthOptions struct {
	AllowBypass bool
}

// Auth validates a bearer token, checks that its session is still open and
// seeds the request context with the caller identity. Bypass tokens carry no
// session and are only honoured when opts.AllowBypass is set.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, opts AuthOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if pkgAuth.IsExpired(err) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}
			if claims.ID == "" || claims.UserID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			switch {
			case claims.Bypass:
				if !opts.AllowBypass {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			case verifier != nil:
				ok, err := verifier.HasSession(r.Context(), claims.UserID, claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			identity := auth.Identity{
				UserID:   claims.UserID,
				Email:    claims.Email,
				Role:     claims.Role,
				AccessID: claims.ID,
				Bypass:   claims.Bypass,
			}
			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    identity.UserID,
					"actor_role": string(identity.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header, accepting
// the header with or without the Bearer scheme.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
