package auth

import (
	"context"
	"strings"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/localstore"
	pkgAuth "github.com/abundantshare/share-backend/pkg/auth"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

const (
	BypassProfileID = "dev-profile-1"
	bypassFullName  = "Dev Admin"
)

// bypassEnabled limits the fixed credential pair to the dev environment.
func (p *provider) bypassEnabled() bool {
	return p.app.IsDev() && !p.devAuth.Disabled &&
		p.devAuth.Email != "" && p.devAuth.Password != ""
}

func (p *provider) isBypass(email, password string) bool {
	return p.bypassEnabled() &&
		email == normalizeEmail(p.devAuth.Email) &&
		password == strings.TrimSpace(p.devAuth.Password)
}

func (p *provider) bypassProfile() domain.Profile {
	now := p.now()
	return domain.Profile{
		ID:        BypassProfileID,
		UserID:    localstore.DevDonorID,
		FullName:  bypassFullName,
		Role:      enums.ProfileRoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// bypassResult signs in the fabricated admin. No session record backs it.
func (p *provider) bypassResult(ctx context.Context) (*AuthResult, error) {
	email := normalizeEmail(p.devAuth.Email)
	token, err := pkgAuth.MintAccessToken(p.jwtCfg, p.now(), pkgAuth.AccessTokenPayload{
		UserID: localstore.DevDonorID,
		Email:  email,
		Role:   enums.ProfileRoleAdmin,
		Bypass: true,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	profile := p.bypassProfile()
	p.logg.Warn(p.logg.WithUserID(ctx, localstore.DevDonorID), "auth.dev_bypass_sign_in")
	return &AuthResult{
		AccessToken: token,
		State:       StateSignedIn,
		User:        SessionUser{ID: localstore.DevDonorID, Email: email},
		Profile:     &profile,
		Bypass:      true,
	}, nil
}

func bypassReadOnly() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "the development identity has no stored profile")
}
