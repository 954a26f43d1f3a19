package localstore

import (
	"context"
	"encoding/json"
	"time"

	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

// OTPRecord is stored under dev_otp_<phone>. ExpiresAt is epoch milliseconds.
type OTPRecord struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (r OTPRecord) ExpiredAt(now time.Time) bool {
	return now.UnixMilli() > r.ExpiresAt
}

func otpKey(phone string) string {
	return otpKeyPrefix + phone
}

// PutOTP stores a code for phone. Unlike listing writes, a failure is returned:
// a code that was never stored can never be verified.
func (s *Store) PutOTP(ctx context.Context, phone, code string, expiresAt time.Time) error {
	record := OTPRecord{Code: code, ExpiresAt: expiresAt.UnixMilli()}
	if err := s.save(ctx, otpKey(phone), record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "could not store verification code")
	}
	return nil
}

// GetOTP returns the pending code for phone, ok=false when none was requested.
func (s *Store) GetOTP(ctx context.Context, phone string) (OTPRecord, bool, error) {
	raw, ok, err := s.kv.Get(ctx, otpKey(phone))
	if err != nil {
		s.logFailure(ctx, "localstore.read_failed", otpKey(phone), err)
		return OTPRecord{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "could not read verification code")
	}
	if !ok || len(raw) == 0 {
		return OTPRecord{}, false, nil
	}
	var record OTPRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logFailure(ctx, "localstore.read_failed", otpKey(phone), err)
		return OTPRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) DeleteOTP(ctx context.Context, phone string) {
	_ = s.remove(ctx, otpKey(phone))
}
