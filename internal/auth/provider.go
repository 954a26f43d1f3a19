// Package auth holds the signed-in identity and profile. Credentials go
// through the hosted user tables when the hosted backend is configured and
// through the on-device credential table otherwise; a fixed development
// credential pair fabricates an admin identity without touching either.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/internal/otp"
	"github.com/abundantshare/share-backend/internal/users"
	pkgAuth "github.com/abundantshare/share-backend/pkg/auth"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/config"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Provider is the auth surface used by the HTTP controllers.
type Provider interface {
	Hosted() bool

	SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error)
	SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error)
	SignOut(ctx context.Context, id Identity) (State, error)
	Refresh(ctx context.Context, req RefreshRequest) (*AuthResult, error)
	ResolveSession(ctx context.Context, accessToken string) SessionView

	GetProfile(ctx context.Context, id Identity) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id Identity, patch domain.ProfilePatch) (domain.Profile, error)
	RequestPhoneCode(ctx context.Context, id Identity, phone string) (*PhoneCodeResult, error)
	SubmitPhoneCode(ctx context.Context, id Identity, phone, code string) (domain.Profile, error)
}

// ProviderParams wires the provider. A nil Users repository selects the
// on-device credential table.
type ProviderParams struct {
	Users    *users.Repository
	Local    *localstore.Store
	Sessions session.Store
	OTP      otp.Challenger
	Bus      events.Publisher
	App      config.AppConfig
	JWT      config.JWTConfig
	Password config.PasswordConfig
	DevAuth  config.DevAuthConfig
	Logger   *logger.Logger
	Clock    func() time.Time
}

type provider struct {
	hosted   bool
	accounts accountStore
	local    accountStore
	sessions session.Store
	otp      otp.Challenger
	app      config.AppConfig
	jwtCfg   config.JWTConfig
	hasher   *security.Hasher
	devAuth  config.DevAuthConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewProvider(p ProviderParams) (Provider, error) {
	if p.Local == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if p.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if p.OTP == nil {
		return nil, fmt.Errorf("otp challenger is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if p.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	bus := p.Bus
	if bus == nil {
		bus = events.Discard{}
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	now := func() time.Time { return clock().UTC() }

	local := &localAccounts{store: p.Local}
	var accounts accountStore = local
	if p.Users != nil {
		accounts = &hostedAccounts{repo: p.Users, bus: bus, now: now}
	}
	return &provider{
		hosted:   p.Users != nil,
		accounts: accounts,
		local:    local,
		sessions: p.Sessions,
		otp:      p.OTP,
		app:      p.App,
		jwtCfg:   p.JWT,
		hasher:   security.NewHasher(p.Password),
		devAuth:  p.DevAuth,
		logg:     p.Logger,
		now:      now,
	}, nil
}

func (p *provider) Hosted() bool { return p.hosted }

func (p *provider) storeMode() string {
	if p.hosted {
		return "hosted"
	}
	return "local"
}

// SignUp creates the account and signs it in. The development credential
// pair always lands in the on-device table so it survives a restart.
func (p *provider) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	password := strings.TrimSpace(req.Password)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if len(password) < 6 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 6 characters")
	}
	if req.ConfirmPassword != "" && strings.TrimSpace(req.ConfirmPassword) != password {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "passwords do not match")
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	accounts := p.accounts
	if p.isBypass(email, password) {
		accounts = p.local
	}
	acct, profile, err := accounts.create(ctx, email, hash, domain.Profile{
		FullName:         strings.TrimSpace(req.FullName),
		OrganizationName: strings.TrimSpace(req.OrganizationName),
		Phone:            strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return nil, err
	}

	ctx = p.logg.WithUserID(ctx, acct.UserID)
	ctx = p.logg.WithStoreMode(ctx, p.storeMode())
	p.logg.Info(ctx, "auth.sign_up")
	return p.issue(ctx, acct, profile)
}

func (p *provider) SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if p.isBypass(email, password) {
		return p.bypassResult(ctx)
	}

	acct, ok, err := p.accounts.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	valid, err := p.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	p.rehashIfStale(ctx, acct, password)

	now := p.now()
	if err := p.accounts.touchLogin(ctx, acct.UserID, now); err != nil {
		return nil, err
	}
	profile, err := p.accounts.profile(ctx, acct.UserID, acct.Email)
	if err != nil {
		return nil, err
	}

	ctx = p.logg.WithUserID(ctx, acct.UserID)
	ctx = p.logg.WithStoreMode(ctx, p.storeMode())
	p.logg.Info(ctx, "auth.sign_in")
	return p.issue(ctx, acct, profile)
}

// rehashIfStale upgrades a hash minted under older argon2 settings. Failure
// only costs the upgrade, never the sign-in.
func (p *provider) rehashIfStale(ctx context.Context, acct account, password string) {
	if !p.hasher.NeedsRehash(acct.PasswordHash) {
		return
	}
	hash, err := p.hasher.Hash(password)
	if err == nil {
		err = p.accounts.setPasswordHash(ctx, acct.UserID, hash)
	}
	if err != nil {
		p.logg.Warn(p.logg.WithUserID(ctx, acct.UserID), "auth.rehash_failed")
		return
	}
	p.logg.Info(p.logg.WithUserID(ctx, acct.UserID), "auth.password_rehashed")
}

// issue mints an access token and stores the refresh session behind it.
func (p *provider) issue(ctx context.Context, acct account, profile domain.Profile) (*AuthResult, error) {
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(p.jwtCfg, p.now(), pkgAuth.AccessTokenPayload{
		UserID: acct.UserID,
		Email:  acct.Email,
		Role:   profile.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := p.sessions.Generate(ctx, acct.UserID, accessID)
	if err != nil {
		return nil, wrapInternal(err, "store refresh token")
	}
	state, _ := Transition(StateSignedOut, EventSignIn)
	return &AuthResult{
		AccessToken:  token,
		RefreshToken: refresh,
		State:        state,
		User:         SessionUser{ID: acct.UserID, Email: acct.Email},
		Profile:      &profile,
	}, nil
}

func (p *provider) SignOut(ctx context.Context, id Identity) (State, error) {
	if !id.Bypass {
		if err := p.sessions.Revoke(ctx, id.UserID, id.AccessID); err != nil {
			return StateSignedIn, wrapInternal(err, "revoke session")
		}
	}
	p.logg.Info(p.logg.WithUserID(ctx, id.UserID), "auth.sign_out")
	return Transition(StateSignedIn, EventSignOut)
}

// Refresh rotates the refresh session tied to the presented access token and
// re-reads the profile so role changes take effect.
func (p *provider) Refresh(ctx context.Context, req RefreshRequest) (*AuthResult, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(p.jwtCfg, strings.TrimSpace(req.AccessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.Bypass {
		if !p.bypassEnabled() {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
		}
		return p.bypassResult(ctx)
	}

	accessID, refresh, err := p.sessions.Rotate(ctx, claims.UserID, claims.ID, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, wrapInternal(err, "rotate refresh token")
	}
	profile, err := p.accounts.profile(ctx, claims.UserID, claims.Email)
	if err != nil {
		return nil, err
	}
	token, err := pkgAuth.MintAccessToken(p.jwtCfg, p.now(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   profile.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &AuthResult{
		AccessToken:  token,
		RefreshToken: refresh,
		State:        StateSignedIn,
		User:         SessionUser{ID: claims.UserID, Email: claims.Email},
		Profile:      &profile,
	}, nil
}

// ResolveSession never fails: anything short of a valid token backed by a
// live session resolves to signed-out.
func (p *provider) ResolveSession(ctx context.Context, accessToken string) SessionView {
	m := NewMachine()
	view := p.resolve(ctx, m, strings.TrimSpace(accessToken))
	m.Resolved()
	view.State = m.State()
	view.Loading = m.Loading()
	return view
}

func (p *provider) resolve(ctx context.Context, m *Machine, accessToken string) SessionView {
	if accessToken == "" {
		return SessionView{}
	}
	claims, err := pkgAuth.ParseAccessToken(p.jwtCfg, accessToken)
	if err != nil {
		return SessionView{}
	}
	user := &SessionUser{ID: claims.UserID, Email: claims.Email}
	if claims.Bypass {
		if !p.bypassEnabled() {
			return SessionView{}
		}
		_ = m.Apply(EventSignIn)
		profile := p.bypassProfile()
		return SessionView{User: user, Profile: &profile}
	}

	ok, err := p.sessions.HasSession(ctx, claims.UserID, claims.ID)
	if err != nil || !ok {
		return SessionView{}
	}
	_ = m.Apply(EventSignIn)
	profile, err := p.accounts.profile(ctx, claims.UserID, claims.Email)
	if err != nil {
		ctx = p.logg.WithUserID(ctx, claims.UserID)
		ctx = p.logg.WithField(ctx, "error", err.Error())
		p.logg.Warn(ctx, "auth.profile_unavailable")
		return SessionView{User: user}
	}
	return SessionView{User: user, Profile: &profile}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func wrapInternal(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
