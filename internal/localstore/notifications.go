package localstore

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
)

// Notification is a per-user message kept on the device only.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      enums.NotificationType `json:"type"`
	ListingID string                 `json:"listing_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Read      bool                   `json:"read"`
}

func (s *Store) readNotifications(ctx context.Context) ([]Notification, error) {
	var items []Notification
	if err := s.load(ctx, KeyNotifications, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) notificationID() string {
	suffix := strconv.FormatInt(rand.Int64N(36*36*36*36*36*36*36), 36)
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + suffix
}

// AddNotification prepends a notification. An empty type defaults to generic.
func (s *Store) AddNotification(ctx context.Context, n Notification) Notification {
	s.lock()
	defer s.unlock()

	n.ID = s.notificationID()
	n.CreatedAt = s.now()
	n.Read = false
	if n.Type == "" {
		n.Type = enums.NotificationTypeGeneric
	}

	items, err := s.readNotifications(ctx)
	if err != nil {
		return n
	}
	items = append([]Notification{n}, items...)
	if s.save(ctx, KeyNotifications, items) == nil {
		s.publish(events.NotificationsChanged, events.ActionCreated, n.ID, n.UserID, n.ListingID)
	}
	return n
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) []Notification {
	s.lock()
	defer s.unlock()

	items, _ := s.readNotifications(ctx)
	out := []Notification{}
	for _, n := range items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount counts the user's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, userID string) int {
	count := 0
	for _, n := range s.ListNotifications(ctx, userID) {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkNotificationRead flags one notification as read. It reports false when
// no notification with that id belongs to the user.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) bool {
	s.lock()
	defer s.unlock()

	items, err := s.readNotifications(ctx)
	if err != nil {
		return false
	}
	idx := slices.IndexFunc(items, func(n Notification) bool { return n.ID == id && n.UserID == userID })
	if idx < 0 {
		return false
	}
	if items[idx].Read {
		return true
	}
	items[idx].Read = true
	if s.save(ctx, KeyNotifications, items) == nil {
		s.publish(events.NotificationsChanged, events.ActionUpdated, id, userID, items[idx].ListingID)
	}
	return true
}

// ClearNotifications drops every notification owned by userID. The key is
// removed once no other user has entries left.
func (s *Store) ClearNotifications(ctx context.Context, userID string) {
	s.lock()
	defer s.unlock()

	items, err := s.readNotifications(ctx)
	if err != nil {
		return
	}
	kept := slices.DeleteFunc(items, func(n Notification) bool { return n.UserID == userID })
	if len(kept) == 0 {
		err = s.remove(ctx, KeyNotifications)
	} else {
		err = s.save(ctx, KeyNotifications, kept)
	}
	if err == nil {
		s.publish(events.NotificationsChanged, events.ActionCleared, "", userID, "")
	}
}
