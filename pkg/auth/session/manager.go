// Package session keeps refresh sessions. Each access token id maps to one
// refresh token; rotating consumes the old pair.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/pkg/config"
	redisclient "github.com/abundantshare/share-backend/pkg/redis"
	"github.com/google/uuid"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Store is the session surface the auth provider depends on. Redis-backed and
// local-device implementations both satisfy it.
type Store interface {
	Generate(ctx context.Context, userID, accessID string) (string, error)
	Rotate(ctx context.Context, userID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, userID, accessID string) error
	AccessSessionChecker
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, userID, accessID string) (bool, error)
}

type redisSessions interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
	SessionKey(userID, accessID string) string
}

// Manager stores refresh sessions in Redis with the refresh TTL.
type Manager struct {
	redis redisSessions
	ttl   time.Duration
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(client redisSessions, cfg config.JWTConfig) (*Manager, error) {
	ttl, err := ValidateTTL(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{redis: client, ttl: ttl}, nil
}

// ValidateTTL returns the refresh TTL, which must outlive the access token.
func ValidateTTL(cfg config.JWTConfig) (time.Duration, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return 0, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return 0, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return ttl, nil
}

func (m *Manager) Generate(ctx context.Context, userID, accessID string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("user id and access id are required")
	}
	token, err := NewRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.redis.Set(ctx, m.redis.SessionKey(userID, accessID), token, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Rotate consumes the old session and issues a new access id and refresh
// token. The old key is deleted only if it still holds the presented token,
// so two concurrent refreshes with the same token cannot both succeed.
func (m *Manager) Rotate(ctx context.Context, userID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}

	consumed, err := m.redis.DeleteIfEqual(ctx, m.redis.SessionKey(userID, oldAccessID), provided)
	if err != nil {
		return "", "", fmt.Errorf("consume session: %w", err)
	}
	if !consumed {
		return "", "", ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	newToken, err := m.Generate(ctx, userID, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, newToken, nil
}

func (m *Manager) Revoke(ctx context.Context, userID, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.redis.Del(ctx, m.redis.SessionKey(userID, accessID))
}

// HasSession reports whether the access id still has a live refresh session.
func (m *Manager) HasSession(ctx context.Context, userID, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	_, err := m.redis.Get(ctx, m.redis.SessionKey(userID, accessID))
	switch {
	case errors.Is(err, redisclient.ErrNil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// NewAccessID is the JWT jti and the session key suffix.
func NewAccessID() string {
	return uuid.NewString()
}

func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokensMatch compares two refresh tokens in constant time.
func TokensMatch(stored, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}
