package auth

import (
	"context"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/otp"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

func (p *provider) GetProfile(ctx context.Context, id Identity) (domain.Profile, error) {
	if id.Bypass {
		return p.bypassProfile(), nil
	}
	return p.accounts.profile(ctx, id.UserID, id.Email)
}

// UpdateProfile applies the self-service patch. Phone fields are not part of
// the patch and only change through SubmitPhoneCode.
func (p *provider) UpdateProfile(ctx context.Context, id Identity, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.IsEmpty() {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if id.Bypass {
		return domain.Profile{}, bypassReadOnly()
	}
	if _, err := p.accounts.profile(ctx, id.UserID, id.Email); err != nil {
		return domain.Profile{}, err
	}
	return p.accounts.updateProfile(ctx, id.UserID, patch.Apply)
}

func (p *provider) RequestPhoneCode(ctx context.Context, id Identity, phone string) (*PhoneCodeResult, error) {
	challenge, err := p.otp.Request(ctx, phone)
	if err != nil {
		return nil, err
	}
	result := &PhoneCodeResult{Phone: challenge.Phone, ExpiresAt: challenge.ExpiresAt}
	if p.app.IsDev() {
		result.DevCode = challenge.Code
	}
	ctx = p.logg.WithUserID(ctx, id.UserID)
	p.logg.Info(ctx, "auth.phone_code_requested")
	return result, nil
}

// SubmitPhoneCode checks the code and, on success, records the phone as
// verified on the caller's profile.
func (p *provider) SubmitPhoneCode(ctx context.Context, id Identity, phone, code string) (domain.Profile, error) {
	if id.Bypass {
		return domain.Profile{}, bypassReadOnly()
	}
	phone, err := otp.NormalizePhone(phone)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := p.otp.Verify(ctx, phone, code); err != nil {
		return domain.Profile{}, err
	}
	if _, err := p.accounts.profile(ctx, id.UserID, id.Email); err != nil {
		return domain.Profile{}, err
	}
	profile, err := p.accounts.updateProfile(ctx, id.UserID, func(current domain.Profile) domain.Profile {
		current.Phone = phone
		current.PhoneVerified = true
		return current
	})
	if err != nil {
		return domain.Profile{}, err
	}
	p.logg.Info(p.logg.WithUserID(ctx, id.UserID), "auth.phone_verified")
	return profile, nil
}
