package auth

import (
	"context"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/internal/users"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/google/uuid"
)

type account struct {
	UserID       string
	Email        string
	PasswordHash string
}

// accountStore is one credential path. Both paths hand back entity-model
// profiles so the provider never branches on the source.
type accountStore interface {
	create(ctx context.Context, email, passwordHash string, profile domain.Profile) (account, domain.Profile, error)
	findByEmail(ctx context.Context, email string) (account, bool, error)
	touchLogin(ctx context.Context, userID string, at time.Time) error
	setPasswordHash(ctx context.Context, userID, hash string) error
	profile(ctx context.Context, userID, email string) (domain.Profile, error)
	updateProfile(ctx context.Context, userID string, mutate func(domain.Profile) domain.Profile) (domain.Profile, error)
}

type hostedAccounts struct {
	repo *users.Repository
	bus  events.Publisher
	now  func() time.Time
}

func (h *hostedAccounts) create(ctx context.Context, email, passwordHash string, p domain.Profile) (account, domain.Profile, error) {
	if _, err := h.repo.FindByEmail(ctx, email); err == nil {
		return account{}, domain.Profile{}, pkgerrors.New(pkgerrors.CodeConflict, "Email already in use")
	} else if !db.IsNotFound(err) {
		return account{}, domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
	}

	row := &models.Profile{Role: enums.ProfileRoleUser}
	users.ApplyProfile(row, p)
	row.Role = enums.ProfileRoleUser
	row.PhoneVerified = false
	user, err := h.repo.Create(ctx, email, passwordHash, row)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return account{}, domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Email already in use")
		}
		return account{}, domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	profile := users.ToDomainProfile(*row)
	h.publish(events.ActionCreated, profile)
	return account{UserID: user.ID.String(), Email: user.Email, PasswordHash: user.PasswordHash}, profile, nil
}

func (h *hostedAccounts) findByEmail(ctx context.Context, email string) (account, bool, error) {
	user, err := h.repo.FindByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return account{}, false, nil
		}
		return account{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	return account{UserID: user.ID.String(), Email: user.Email, PasswordHash: user.PasswordHash}, true, nil
}

func (h *hostedAccounts) touchLogin(ctx context.Context, userID string, at time.Time) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	if err := h.repo.UpdateLastLogin(ctx, id, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	return nil
}

func (h *hostedAccounts) setPasswordHash(ctx context.Context, userID, hash string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	if err := h.repo.UpdatePasswordHash(ctx, id, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password hash")
	}
	return nil
}

// profile loads the user's profile, creating a minimal one when the row is
// missing (full name = email, role = user).
func (h *hostedAccounts) profile(ctx context.Context, userID, email string) (domain.Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	row, err := h.repo.FindProfile(ctx, id)
	if err == nil {
		return users.ToDomainProfile(*row), nil
	}
	if !db.IsNotFound(err) {
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	created := &models.Profile{UserID: id, FullName: email, Role: enums.ProfileRoleUser}
	if err := h.repo.CreateProfile(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "") {
			if row, err := h.repo.FindProfile(ctx, id); err == nil {
				return users.ToDomainProfile(*row), nil
			}
		}
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create default profile")
	}
	profile := users.ToDomainProfile(*created)
	h.publish(events.ActionCreated, profile)
	return profile, nil
}

func (h *hostedAccounts) updateProfile(ctx context.Context, userID string, mutate func(domain.Profile) domain.Profile) (domain.Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	row, err := h.repo.FindProfile(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	users.ApplyProfile(row, mutate(users.ToDomainProfile(*row)))
	if err := h.repo.SaveProfile(ctx, row); err != nil {
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	profile := users.ToDomainProfile(*row)
	h.publish(events.ActionUpdated, profile)
	return profile, nil
}

func (h *hostedAccounts) publish(action events.Action, p domain.Profile) {
	h.bus.Publish(events.Event{
		Name:       events.ProfileChanged,
		Action:     action,
		EntityID:   p.ID,
		UserID:     p.UserID,
		OccurredAt: h.now(),
	})
}

// localAccounts is the on-device credential table.
type localAccounts struct {
	store *localstore.Store
}

func (l *localAccounts) create(ctx context.Context, email, passwordHash string, p domain.Profile) (account, domain.Profile, error) {
	p.Role = enums.ProfileRoleUser
	user, err := l.store.CreateUser(ctx, email, passwordHash, p)
	if err != nil {
		return account{}, domain.Profile{}, err
	}
	return account{UserID: user.ID, Email: user.Email, PasswordHash: user.PasswordHash}, user.Profile, nil
}

func (l *localAccounts) findByEmail(ctx context.Context, email string) (account, bool, error) {
	user, ok := l.store.FindUserByEmail(ctx, email)
	if !ok {
		return account{}, false, nil
	}
	return account{UserID: user.ID, Email: user.Email, PasswordHash: user.PasswordHash}, true, nil
}

func (l *localAccounts) touchLogin(context.Context, string, time.Time) error { return nil }

func (l *localAccounts) setPasswordHash(ctx context.Context, userID, hash string) error {
	l.store.SetPasswordHash(ctx, userID, hash)
	return nil
}

func (l *localAccounts) profile(ctx context.Context, userID, _ string) (domain.Profile, error) {
	p := l.store.GetProfile(ctx, userID)
	if p == nil {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return *p, nil
}

func (l *localAccounts) updateProfile(ctx context.Context, userID string, mutate func(domain.Profile) domain.Profile) (domain.Profile, error) {
	return l.store.UpdateProfile(ctx, userID, mutate)
}
