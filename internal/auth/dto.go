package auth

import (
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/pkg/enums"
)

// SignUpRequest carries a new account's credentials and initial profile data.
type SignUpRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
	ConfirmPassword  string `json:"confirm_password,omitempty"`
	FullName         string `json:"full_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Phone            string `json:"phone,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest pairs the last access token, expired or not, with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type PhoneCodeRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type PhoneVerifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// SessionUser is the identity half of a signed-in session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthResult is returned by every operation that opens a session.
type AuthResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	State        State           `json:"state"`
	User         SessionUser     `json:"user"`
	Profile      *domain.Profile `json:"profile"`
	Bypass       bool            `json:"bypass,omitempty"`
}

// SessionView is the resolved state of a presented access token.
type SessionView struct {
	State   State           `json:"state"`
	Loading bool            `json:"loading"`
	User    *SessionUser    `json:"user"`
	Profile *domain.Profile `json:"profile"`
}

// PhoneCodeResult reports an issued code. DevCode is only set in development.
type PhoneCodeResult struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
	DevCode   string    `json:"dev_code,omitempty"`
}

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
	UserID   string
	Email    string
	Role     enums.ProfileRole
	AccessID string
	Bypass   bool
}

func (i Identity) Actor() domain.Actor {
	return domain.Actor{UserID: i.UserID, Role: i.Role}
}
