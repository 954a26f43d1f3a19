package localstore

import (
	"context"
	"time"

	"github.com/abundantshare/share-backend/pkg/auth/session"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

// sessionMarker is the value stored per user in dev_sessions_v1. A user holds
// at most one local session; signing in again replaces it.
type sessionMarker struct {
	AccessID     string    `json:"access_id"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
}

func (s *Store) readSessions(ctx context.Context) (map[string]sessionMarker, error) {
	sessions := map[string]sessionMarker{}
	if err := s.load(ctx, KeySessions, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = map[string]sessionMarker{}
	}
	return sessions, nil
}

// Sessions exposes the session map through the session.Store interface.
func (s *Store) Sessions() *Sessions {
	return &Sessions{store: s}
}

type Sessions struct {
	store *Store
}

var _ session.Store = (*Sessions)(nil)

func (m *Sessions) Generate(ctx context.Context, userID, accessID string) (string, error) {
	s := m.store
	s.lock()
	defer s.unlock()

	sessions, err := s.readSessions(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local session table unavailable")
	}
	token, err := session.NewRefreshToken()
	if err != nil {
		return "", err
	}
	sessions[userID] = sessionMarker{AccessID: accessID, RefreshToken: token, IssuedAt: s.now()}
	if err := s.save(ctx, KeySessions, sessions); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local session table unavailable")
	}
	return token, nil
}

func (m *Sessions) Rotate(ctx context.Context, userID, oldAccessID, provided string) (string, string, error) {
	s := m.store
	s.lock()
	defer s.unlock()

	sessions, err := s.readSessions(ctx)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local session table unavailable")
	}
	marker, ok := sessions[userID]
	if !ok || marker.AccessID != oldAccessID || !session.TokensMatch(marker.RefreshToken, provided) {
		return "", "", session.ErrInvalidRefreshToken
	}
	token, err := session.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	accessID := session.NewAccessID()
	sessions[userID] = sessionMarker{AccessID: accessID, RefreshToken: token, IssuedAt: s.now()}
	if err := s.save(ctx, KeySessions, sessions); err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local session table unavailable")
	}
	return accessID, token, nil
}

// Revoke deletes the user's session entry when it belongs to accessID.
func (m *Sessions) Revoke(ctx context.Context, userID, accessID string) error {
	s := m.store
	s.lock()
	defer s.unlock()

	sessions, err := s.readSessions(ctx)
	if err != nil {
		return nil
	}
	marker, ok := sessions[userID]
	if !ok || (accessID != "" && marker.AccessID != accessID) {
		return nil
	}
	delete(sessions, userID)
	_ = s.save(ctx, KeySessions, sessions)
	return nil
}

func (m *Sessions) HasSession(ctx context.Context, userID, accessID string) (bool, error) {
	s := m.store
	s.lock()
	defer s.unlock()

	sessions, err := s.readSessions(ctx)
	if err != nil {
		return false, nil
	}
	marker, ok := sessions[userID]
	return ok && marker.AccessID == accessID, nil
}
