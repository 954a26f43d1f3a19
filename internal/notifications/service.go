// Package notifications keeps per-user in-app notifications on the Local
// Device Store, in both hosted and local mode.
package notifications

import (
	"context"
	"strings"

	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

type Notification = localstore.Notification

// Repository is the notification table of the device store.
type Repository interface {
	AddNotification(ctx context.Context, n localstore.Notification) localstore.Notification
	ListNotifications(ctx context.Context, userID string) []localstore.Notification
	UnreadCount(ctx context.Context, userID string) int
	MarkNotificationRead(ctx context.Context, userID, id string) bool
	ClearNotifications(ctx context.Context, userID string)
}

// Service defines notification create/list/read operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Notification, error)
	ListForUser(ctx context.Context, userID string) (*ListResult, error)
	MarkRead(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error

	// Notify is the fire-and-forget form used by the listing facade.
	Notify(ctx context.Context, userID string, kind enums.NotificationType, title, message, listingID string)
}

type CreateInput struct {
	UserID    string
	Title     string
	Message   string
	Type      enums.NotificationType
	ListingID string
}

// ListResult wraps the user's notifications, newest first.
type ListResult struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires notifications dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Type != "" && !input.Type.IsValid() {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	n := s.repo.AddNotification(ctx, localstore.Notification{
		UserID:    input.UserID,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Type:      input.Type,
		ListingID: input.ListingID,
	})
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":           n.UserID,
		"notification_id":   n.ID,
		"notification_type": string(n.Type),
	})
	s.logg.Info(ctx, "notifications.created")
	return n, nil
}

func (s *service) Notify(ctx context.Context, userID string, kind enums.NotificationType, title, message, listingID string) {
	if _, err := s.Create(ctx, CreateInput{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		ListingID: listingID,
	}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "notifications.dropped")
	}
}

func (s *service) ListForUser(ctx context.Context, userID string) (*ListResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	items := s.repo.ListNotifications(ctx, userID)
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return &ListResult{Items: items, Unread: unread}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	if !s.repo.MarkNotificationRead(ctx, userID, id) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	s.repo.ClearNotifications(ctx, userID)
	s.logg.Info(s.logg.WithUserID(ctx, userID), "notifications.cleared")
	return nil
}
