// Package otp issues and checks the short numeric codes used to verify a
// profile's phone number.
package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/pkg/config"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"gorm.io/gorm"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// Challenge describes an issued code. Code is only populated by providers
// that never leave the process, so callers may echo it in development.
type Challenge struct {
	Phone     string
	ExpiresAt time.Time
	Code      string
}

// Challenger is the two-step phone verification contract.
type Challenger interface {
	Request(ctx context.Context, phone string) (Challenge, error)
	Verify(ctx context.Context, phone, code string) error
}

var (
	errNoCode      = pkgerrors.New(pkgerrors.CodeValidation, "no verification code requested")
	errExpired     = pkgerrors.New(pkgerrors.CodeValidation, "verification code expired")
	errInvalidCode = pkgerrors.New(pkgerrors.CodeValidation, "invalid verification code")
	errAttempts    = pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts")
)

// NormalizePhone trims the number and rejects empty input.
func NormalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	return trimmed, nil
}

// Params selects and wires a provider.
type Params struct {
	Config config.OTPConfig
	Hosted bool
	DB     *gorm.DB
	Local  LocalRecords
	Sender Sender
	Logger *logger.Logger
	Clock  func() time.Time
}

// New builds the configured provider.
func New(p Params) (Challenger, error) {
	switch p.Config.ResolvedProvider(p.Hosted) {
	case config.OTPProviderLocal:
		return NewLocal(p.Local, p.Config, p.Clock)
	case config.OTPProviderRelay:
		return NewRelay(p.Config.RelaySendURL, p.Config.RelayCheckURL,
			WithToken(p.Config.RelayToken), WithTimeout(p.Config.RelayTimeout))
	case config.OTPProviderHosted:
		if p.DB == nil {
			return nil, fmt.Errorf("hosted otp provider requires a database")
		}
		return NewHosted(HostedParams{
			Repo:   NewRepository(p.DB),
			Sender: p.Sender,
			Config: p.Config,
			Logger: p.Logger,
			Clock:  p.Clock,
		})
	default:
		return nil, fmt.Errorf("unknown otp provider %q", p.Config.Provider)
	}
}
