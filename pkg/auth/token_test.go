package auth

import (
	"testing"
	"time"

	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "abundant-share",
		ExpirationMinutes: minutes,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig(30)
	now := time.Now().UTC()
	userID := uuid.NewString()

	payload := AccessTokenPayload{
		UserID: userID,
		Email:  "donor@example.com",
		Role:   enums.ProfileRoleAdmin,
		JTI:    "access-1",
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID || claims.Subject != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.ProfileRoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.ID != "access-1" {
		t.Fatalf("expected jti to be preserved, got %q", claims.ID)
	}
	if claims.Bypass {
		t.Fatal("bypass must default to false")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestMintAccessTokenBypassIdentity(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "dev-user-id-1", Role: enums.ProfileRoleAdmin, Bypass: true})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.Bypass || claims.UserID != "dev-user-id-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.NewString(), Role: enums.ProfileRoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.NewString(), Role: enums.ProfileRoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !IsExpired(err) {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	if err != nil {
		t.Fatalf("expected expired token to parse for refresh: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti on expired token")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig(5)
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.NewString(), Role: ""}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ProfileRoleUser}); err == nil {
		t.Fatal("expected missing user id error")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "i"}, time.Now(), AccessTokenPayload{UserID: "u", Role: enums.ProfileRoleUser}); err == nil {
		t.Fatal("expected invalid expiration error")
	}
}

func TestParseAccessTokenToleratesClockSkew(t *testing.T) {
	cfg := testJWTConfig(1)
	// Minted 70s ago with a one minute lifetime: 10s past exp, inside the skew.
	token, err := MintAccessToken(cfg, time.Now().Add(-70*time.Second), AccessTokenPayload{UserID: "local-1", Role: enums.ProfileRoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("expected token within skew to parse: %v", err)
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	cfg := testJWTConfig(10)
	now := time.Now()

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}
	base := func(aud ...string) AccessTokenClaims {
		return AccessTokenClaims{UserID: "u1", Role: enums.ProfileRoleUser, RegisteredClaims: jwt.RegisteredClaims{
			ID: "a1", Issuer: cfg.Issuer, Audience: aud,
			IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
	}

	cases := map[string]string{
		"no audience":    sign(base(), jwt.SigningMethodHS256, []byte(cfg.Secret)),
		"other audience": sign(base("billing"), jwt.SigningMethodHS256, []byte(cfg.Secret)),
		"hs512":          sign(base(Audience), jwt.SigningMethodHS512, []byte(cfg.Secret)),
		"other issuer": sign(func() AccessTokenClaims {
			c := base(Audience)
			c.Issuer = "someone-else"
			return c
		}(), jwt.SigningMethodHS256, []byte(cfg.Secret)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(cfg, token); err == nil {
				t.Fatal("expected parse to fail")
			}
			if _, err := ParseAccessTokenAllowExpired(cfg, token); err == nil {
				t.Fatal("expected lenient parse to fail too")
			}
		})
	}
}
