package localstore

import (
	"context"
	"slices"
	"strings"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

// User is one row of the local credential table. PasswordHash holds an
// argon2id hash.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password"`
	Profile      domain.Profile `json:"profile"`
}

func (s *Store) readUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.load(ctx, KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func findUser(users []User, id string) int {
	return slices.IndexFunc(users, func(u User) bool { return u.ID == id })
}

func findUserByEmail(users []User, email string) int {
	return slices.IndexFunc(users, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

// CreateUser appends a credential row, rejecting emails already in use
// (case-insensitive).
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, profile domain.Profile) (User, error) {
	s.lock()
	defer s.unlock()

	users, readErr := s.readUsers(ctx)
	if findUserByEmail(users, email) >= 0 {
		return User{}, pkgerrors.New(pkgerrors.CodeConflict, "Email already in use")
	}

	now := s.now()
	id := s.mintID("local-user")
	for findUser(users, id) >= 0 {
		id = s.mintID("local-user")
	}
	profile.ID = "local-profile-" + id
	profile.UserID = id
	if profile.Role == "" {
		profile.Role = enums.ProfileRoleUser
	}
	profile.PhoneVerified = false
	profile.CreatedAt = now
	profile.UpdatedAt = now

	user := User{ID: id, Email: email, PasswordHash: passwordHash, Profile: profile}
	if readErr != nil {
		return user, nil
	}
	users = append(users, user)
	if s.save(ctx, KeyUsers, users) == nil {
		s.publish(events.ProfileChanged, events.ActionCreated, profile.ID, id, "")
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, bool) {
	s.lock()
	defer s.unlock()

	users, _ := s.readUsers(ctx)
	idx := findUserByEmail(users, email)
	if idx < 0 {
		return User{}, false
	}
	return users[idx], true
}

func (s *Store) GetUser(ctx context.Context, id string) (User, bool) {
	s.lock()
	defer s.unlock()

	users, _ := s.readUsers(ctx)
	idx := findUser(users, id)
	if idx < 0 {
		return User{}, false
	}
	return users[idx], true
}

// GetProfile returns the profile for userID, or nil when the user is unknown.
func (s *Store) GetProfile(ctx context.Context, userID string) *domain.Profile {
	s.lock()
	defer s.unlock()
	return s.profileLocked(ctx, userID)
}

func (s *Store) profileLocked(ctx context.Context, userID string) *domain.Profile {
	users, err := s.readUsers(ctx)
	if err != nil {
		return nil
	}
	idx := findUser(users, userID)
	if idx < 0 {
		return nil
	}
	profile := users[idx].Profile
	return &profile
}

// UpdateProfile applies mutate to the stored profile of userID and persists it.
func (s *Store) UpdateProfile(ctx context.Context, userID string, mutate func(domain.Profile) domain.Profile) (domain.Profile, error) {
	s.lock()
	defer s.unlock()

	users, _ := s.readUsers(ctx)
	idx := findUser(users, userID)
	if idx < 0 {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	updated := mutate(users[idx].Profile)
	updated.ID = users[idx].Profile.ID
	updated.UserID = userID
	updated.CreatedAt = users[idx].Profile.CreatedAt
	updated.UpdatedAt = s.now()
	users[idx].Profile = updated
	if s.save(ctx, KeyUsers, users) == nil {
		s.publish(events.ProfileChanged, events.ActionUpdated, updated.ID, userID, "")
	}
	return updated, nil
}

// SetPasswordHash replaces the stored hash for userID. Unknown users are a
// no-op.
func (s *Store) SetPasswordHash(ctx context.Context, userID, passwordHash string) {
	s.lock()
	defer s.unlock()

	users, err := s.readUsers(ctx)
	if err != nil {
		return
	}
	idx := findUser(users, userID)
	if idx < 0 {
		return
	}
	users[idx].PasswordHash = passwordHash
	_ = s.save(ctx, KeyUsers, users)
}

// ListUsers returns every local credential row.
func (s *Store) ListUsers(ctx context.Context) []User {
	s.lock()
	defer s.unlock()

	users, _ := s.readUsers(ctx)
	if users == nil {
		return []User{}
	}
	return users
}

// DeleteUser removes the credential row and any open session for it.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.lock()
	defer s.unlock()

	users, err := s.readUsers(ctx)
	if err != nil {
		return nil
	}
	idx := findUser(users, id)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	users = slices.Delete(users, idx, idx+1)
	if s.save(ctx, KeyUsers, users) != nil {
		return nil
	}
	sessions, err := s.readSessions(ctx)
	if err == nil {
		if _, ok := sessions[id]; ok {
			delete(sessions, id)
			_ = s.save(ctx, KeySessions, sessions)
		}
	}
	s.publish(events.ProfileChanged, events.ActionDeleted, id, id, "")
	return nil
}

// SetRole changes the role on the stored profile of userID.
func (s *Store) SetRole(ctx context.Context, userID string, role enums.ProfileRole) (domain.Profile, error) {
	return s.UpdateProfile(ctx, userID, func(p domain.Profile) domain.Profile {
		p.Role = role
		return p
	})
}
