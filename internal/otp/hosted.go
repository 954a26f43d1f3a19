package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/db/models"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/security"
)

type HostedParams struct {
	Repo   *Repository
	Sender Sender
	Config config.OTPConfig
	Logger *logger.Logger
	Clock  func() time.Time
}

// Hosted stores HMAC-keyed codes in phone_otps and hands delivery to a Sender.
type Hosted struct {
	repo        *Repository
	sender      Sender
	key         string
	ttl         time.Duration
	maxAttempts int
	logg        *logger.Logger
	now         func() time.Time
}

func NewHosted(p HostedParams) (*Hosted, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	if p.Config.HMACKey == "" {
		return nil, fmt.Errorf("otp hmac key required")
	}
	sender := p.Sender
	if sender == nil {
		sender = LogSender{Logger: p.Logger}
	}
	ttl := p.Config.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxAttempts := p.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Hosted{
		repo:        p.Repo,
		sender:      sender,
		key:         p.Config.HMACKey,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		logg:        p.Logger,
		now:         func() time.Time { return clock().UTC() },
	}, nil
}

func (h *Hosted) Request(ctx context.Context, phone string) (Challenge, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return Challenge{}, err
	}
	code, err := security.GenerateNumericCode(CodeLength)
	if err != nil {
		return Challenge{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	now := h.now()
	row := &models.PhoneOTP{
		Phone:     phone,
		CodeHash:  security.CodeHMAC(h.key, phone, code),
		ExpiresAt: now.Add(h.ttl),
		CreatedAt: now,
	}
	if err := h.repo.Upsert(ctx, row); err != nil {
		return Challenge{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store verification code")
	}
	if err := h.sender.Send(ctx, phone, code); err != nil {
		return Challenge{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification code")
	}
	return Challenge{Phone: phone, ExpiresAt: row.ExpiresAt}, nil
}

// Verify checks attempts before expiry, counts every mismatch and removes the
// row once the code matches.
func (h *Hosted) Verify(ctx context.Context, phone, code string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	row, err := h.repo.Find(ctx, phone)
	if err != nil {
		if db.IsNotFound(err) {
			return errNoCode
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification code")
	}
	if row.Attempts >= h.maxAttempts {
		return errAttempts
	}
	if h.now().After(row.ExpiresAt) {
		return errExpired
	}
	if !security.CodeHMACMatches(row.CodeHash, h.key, phone, strings.TrimSpace(code)) {
		if err := h.repo.IncrementAttempts(ctx, phone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record verification attempt")
		}
		return errInvalidCode
	}
	if err := h.repo.Delete(ctx, phone); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume verification code")
	}
	return nil
}
