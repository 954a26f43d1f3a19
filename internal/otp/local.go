package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/security"
)

// LocalRecords is the device-store surface holding dev_otp_<phone> records.
type LocalRecords interface {
	PutOTP(ctx context.Context, phone, code string, expiresAt time.Time) error
	GetOTP(ctx context.Context, phone string) (localstore.OTPRecord, bool, error)
	DeleteOTP(ctx context.Context, phone string)
}

// Local keeps codes in the Local Device Store with a clock-based expiry.
type Local struct {
	records LocalRecords
	ttl     time.Duration
	devCode string
	now     func() time.Time
}

func NewLocal(records LocalRecords, cfg config.OTPConfig, clock func() time.Time) (*Local, error) {
	if records == nil {
		return nil, fmt.Errorf("local otp records required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &Local{records: records, ttl: ttl, devCode: cfg.DevCode, now: clock}, nil
}

func (l *Local) Request(ctx context.Context, phone string) (Challenge, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return Challenge{}, err
	}
	code := l.devCode
	if code == "" {
		if code, err = security.GenerateNumericCode(CodeLength); err != nil {
			return Challenge{}, err
		}
	}
	expiresAt := l.now().Add(l.ttl)
	if err := l.records.PutOTP(ctx, phone, code, expiresAt); err != nil {
		return Challenge{}, err
	}
	return Challenge{Phone: phone, ExpiresAt: expiresAt, Code: code}, nil
}

func (l *Local) Verify(ctx context.Context, phone, code string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	record, ok, err := l.records.GetOTP(ctx, phone)
	if err != nil {
		return err
	}
	if !ok {
		return errNoCode
	}
	if record.ExpiredAt(l.now()) {
		return errExpired
	}
	if !security.CodesEqual(record.Code, strings.TrimSpace(code)) {
		return errInvalidCode
	}
	l.records.DeleteOTP(ctx, phone)
	return nil
}
