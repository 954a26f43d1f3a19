package auth

import (
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Role   enums.ProfileRole
	// Bypass marks the fabricated development identity; no session record backs it.
	Bypass bool
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email,omitempty"`
	Role   enums.ProfileRole `json:"role"`
	Bypass bool              `json:"bypass,omitempty"`
	jwt.RegisteredClaims
}
