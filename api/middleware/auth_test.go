package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abundantshare/share-backend/internal/auth"
	pkgAuth "github.com/abundantshare/share-backend/pkg/auth"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler(captured *auth.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured, _ = IdentityFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, AuthOptions{}, nil)(okHandler(nil))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, AuthOptions{}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.NewString()
	token, accessID := mintTestToken(t, pkgAuth.AccessTokenPayload{UserID: userID, Email: "a@example.com", Role: enums.ProfileRoleAdmin})

	var captured auth.Identity
	verifier := stubSessionVerifier{ok: true, wantUser: userID, wantAccess: accessID}
	handler := Auth(testJWT, verifier, AuthOptions{}, nil)(okHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, "a@example.com", captured.Email)
	assert.Equal(t, enums.ProfileRoleAdmin, captured.Role)
	assert.Equal(t, accessID, captured.AccessID)
	assert.False(t, captured.Bypass)
}

func TestAuthRejectsClosedSession(t *testing.T) {
	token, _ := mintTestToken(t, pkgAuth.AccessTokenPayload{UserID: "local-1", Role: enums.ProfileRoleUser})
	handler := Auth(testJWT, stubSessionVerifier{ok: false}, AuthOptions{}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSessionLookupFailure(t *testing.T) {
	token, _ := mintTestToken(t, pkgAuth.AccessTokenPayload{UserID: "local-1", Role: enums.ProfileRoleUser})
	handler := Auth(testJWT, stubSessionVerifier{err: errors.New("redis down")}, AuthOptions{}, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestAuthBypassToken(t *testing.T) {
	token, _ := mintTestToken(t, pkgAuth.AccessTokenPayload{UserID: "dev-profile-1", Role: enums.ProfileRoleAdmin, Bypass: true})
	// No session exists for bypass tokens; the verifier must not be consulted.
	verifier := stubSessionVerifier{err: errors.New("should not be called")}

	t.Run("allowed", func(t *testing.T) {
		var captured auth.Identity
		handler := Auth(testJWT, verifier, AuthOptions{AllowBypass: true}, nil)(okHandler(&captured))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.True(t, captured.Bypass)
		assert.Equal(t, "dev-profile-1", captured.UserID)
	})

	t.Run("disabled", func(t *testing.T) {
		handler := Auth(testJWT, verifier, AuthOptions{}, nil)(okHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestRequireRole(t *testing.T) {
	build := func(role enums.ProfileRole, src ProfileSource) (*httptest.ResponseRecorder, *http.Request) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: "u1", Role: role}))
		resp := httptest.NewRecorder()
		RequireRole(enums.ProfileRoleAdmin, src, nil)(okHandler(nil)).ServeHTTP(resp, req)
		return resp, req
	}

	resp, _ := build(enums.ProfileRoleAdmin, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, _ = build(enums.ProfileRoleUser, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	// A demoted admin holding an old token is rejected once the profile changes.
	resp, _ = build(enums.ProfileRoleAdmin, staticRole(enums.ProfileRoleUser))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer   abc ")
	assert.Equal(t, "abc", BearerToken(req))

	req.Header.Set("Authorization", "abc")
	assert.Equal(t, "abc", BearerToken(req))
}

func mintTestToken(t *testing.T, payload pkgAuth.AccessTokenPayload) (string, string) {
	t.Helper()
	payload.JTI = session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), payload)
	require.NoError(t, err)
	return token, payload.JTI
}

type stubSessionVerifier struct {
	ok         bool
	err        error
	wantUser   string
	wantAccess string
}

func (s stubSessionVerifier) HasSession(ctx context.Context, userID, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.wantUser != "" && (s.wantUser != userID || s.wantAccess != accessID) {
		return false, nil
	}
	return s.ok, nil
}

type staticRole enums.ProfileRole

func (s staticRole) RoleOf(*http.Request) (enums.ProfileRole, error) {
	return enums.ProfileRole(s), nil
}

func TestResolveRoleRewritesIdentity(t *testing.T) {
	var seen auth.Identity
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	serve := func(src ProfileSource, role enums.ProfileRole) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/listings/x", nil)
		req = req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: "u1", Role: role}))
		resp := httptest.NewRecorder()
		ResolveRole(src, nil)(capture).ServeHTTP(resp, req)
		return resp
	}

	// A demoted admin's stale token no longer grants the admin override.
	resp := serve(staticRole(enums.ProfileRoleUser), enums.ProfileRoleAdmin)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.ProfileRoleUser, seen.Role)
	assert.Equal(t, "u1", seen.UserID)

	resp = serve(nil, enums.ProfileRoleAdmin)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.ProfileRoleAdmin, seen.Role)

	resp = serve(failingRole{}, enums.ProfileRoleUser)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

type failingRole struct{}

func (failingRole) RoleOf(*http.Request) (enums.ProfileRole, error) {
	return "", pkgerrors.New(pkgerrors.CodeDependency, "profiles unavailable")
}
