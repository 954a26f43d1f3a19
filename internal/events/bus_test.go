package events

import (
	"io"
	"testing"

	"github.com/abundantshare/share-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestPublishDeliversInOrderToMatchingListeners(t *testing.T) {
	b := NewBus(testLogger())
	var got []Action
	b.Subscribe(ListingsChanged, func(e Event) { got = append(got, e.Action) })
	var claims int
	b.Subscribe(ClaimsChanged, func(Event) { claims++ })

	b.Publish(Event{Name: ListingsChanged, Action: ActionCreated})
	b.Publish(Event{Name: ListingsChanged, Action: ActionUpdated})
	b.Publish(Event{Name: ListingsChanged, Action: ActionDeleted})

	if len(got) != 3 || got[0] != ActionCreated || got[1] != ActionUpdated || got[2] != ActionDeleted {
		t.Fatalf("unexpected delivery order %v", got)
	}
	if claims != 0 {
		t.Fatalf("claims listener should not receive listing events, got %d", claims)
	}
}

func TestPublishWithoutListenersIsDropped(t *testing.T) {
	b := NewBus(nil)
	b.Publish(Event{Name: ListingsChanged, Action: ActionCreated})

	var got int
	b.Subscribe(ListingsChanged, func(Event) { got++ })
	if got != 0 {
		t.Fatalf("late subscribers must not see earlier events, got %d", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(nil)
	var got int
	unsubscribe := b.Subscribe("", func(Event) { got++ })
	b.Publish(Event{Name: ClaimsChanged})
	unsubscribe()
	unsubscribe()
	b.Publish(Event{Name: ClaimsChanged})
	if got != 1 {
		t.Fatalf("expected exactly one delivery, got %d", got)
	}
}

func TestListenerPanicDoesNotStopOthers(t *testing.T) {
	b := NewBus(testLogger())
	var delivered bool
	b.Subscribe(NotificationsChanged, func(Event) { panic("boom") })
	b.Subscribe(NotificationsChanged, func(Event) { delivered = true })

	b.Publish(Event{Name: NotificationsChanged})
	if !delivered {
		t.Fatal("expected second listener to run after the first panicked")
	}
}

func TestPublishStampsOccurredAt(t *testing.T) {
	b := NewBus(nil)
	var evt Event
	b.Subscribe(ProfileChanged, func(e Event) { evt = e })
	b.Publish(Event{Name: ProfileChanged})
	if evt.OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt to be set")
	}
}
