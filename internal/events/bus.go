// Package events is the process-wide change-notification bus. Delivery is
// fire-and-forget: listeners run synchronously in publish order, nothing is
// queued, and an event published while nobody listens is dropped.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abundantshare/share-backend/pkg/logger"
)

type Name string

const (
	ListingsChanged      Name = "listings.changed"
	ClaimsChanged        Name = "claims.changed"
	NotificationsChanged Name = "notifications.changed"
	ProfileChanged       Name = "profile.changed"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionSeeded  Action = "seeded"
	ActionCleared Action = "cleared"
)

// Event is the typed payload carried by every notification.
type Event struct {
	Name       Name      `json:"name"`
	Action     Action    `json:"action"`
	EntityID   string    `json:"entity_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	ListingID  string    `json:"listing_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Listener receives events it subscribed to.
type Listener func(Event)

// Publisher is the write side writers depend on.
type Publisher interface {
	Publish(Event)
}

// Bus exposes both sides of the observer interface.
type Bus interface {
	Publisher
	// Subscribe registers a listener for name; an empty name receives every
	// event. The returned func removes the listener and is safe to call twice.
	Subscribe(name Name, fn Listener) (unsubscribe func())
}

type subscription struct {
	id   uint64
	name Name
	fn   Listener
}

type bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logg   *logger.Logger
	now    func() time.Time
}

// NewBus builds an in-process bus. logg may be nil.
func NewBus(logg *logger.Logger) Bus {
	return &bus{logg: logg, now: time.Now}
}

func (b *bus) Subscribe(name Name, fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *bus) Publish(evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now().UTC()
	}
	b.mu.RLock()
	targets := make([]Listener, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.name == "" || sub.name == evt.Name {
			targets = append(targets, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		b.deliver(evt, fn)
	}
}

func (b *bus) deliver(evt Event, fn Listener) {
	defer func() {
		if r := recover(); r != nil && b.logg != nil {
			ctx := b.logg.WithFields(context.Background(), map[string]any{
				"event": string(evt.Name),
				"panic": fmt.Sprint(r),
			})
			b.logg.Error(ctx, "events.listener_panic", nil)
		}
	}()
	fn(evt)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
