// Package localstore is the Local Device Store: listings, claims, users,
// sessions, one-time codes and notifications kept as JSON documents under
// fixed keys in an injected key-value medium.
//
// Storage failures never reach callers of the listing and claim operations:
// reads degrade to empty collections and writes become no-ops, with the
// error logged and counted.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/kv"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
)

const (
	KeyListings      = "dev_food_listings_v1"
	KeyClaims        = "dev_food_claims_v1"
	KeyUsers         = "dev_users_v1"
	KeySessions      = "dev_sessions_v1"
	KeyAutoSeeded    = "dev_autoseeded_v1"
	KeyNotifications = "dev_notifications_v1"

	otpKeyPrefix = "dev_otp_"

	// DevDonorID owns listings created without a donor and the dev bypass identity.
	DevDonorID = "dev-user-id-1"
)

// Params wires the store dependencies. Bus, Metrics and Clock are optional.
type Params struct {
	KV      kv.Store
	Bus     events.Publisher
	Logger  *logger.Logger
	Metrics *metrics.StoreMetrics
	Clock   func() time.Time
}

// Store serialises read-modify-write cycles within the process. Writers in
// other processes sharing the medium remain last-writer-wins.
//
// Change events raised under mu are queued and delivered once mu is
// released, so listeners may call back into the store.
type Store struct {
	kv      kv.Store
	bus     events.Publisher
	logg    *logger.Logger
	metrics *metrics.StoreMetrics
	now     func() time.Time

	mu      sync.Mutex
	pending []events.Event
}

func New(p Params) (*Store, error) {
	if p.KV == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	bus := p.Bus
	if bus == nil {
		bus = events.Discard{}
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		kv:      p.KV,
		bus:     bus,
		logg:    p.Logger,
		metrics: p.Metrics,
		now:     func() time.Time { return clock().UTC() },
	}, nil
}

// load decodes the document at key into dst. An absent key leaves dst untouched.
func (s *Store) load(ctx context.Context, key string, dst any) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.StoreLocal, "read", started, err) }()

	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logFailure(ctx, "localstore.read_failed", key, err)
		return err
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		err = fmt.Errorf("decode %s: %w", key, err)
		s.logFailure(ctx, "localstore.read_failed", key, err)
		return err
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, value any) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.StoreLocal, "write", started, err) }()

	raw, err := json.Marshal(value)
	if err != nil {
		err = fmt.Errorf("encode %s: %w", key, err)
		s.logFailure(ctx, "localstore.write_failed", key, err)
		return err
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logFailure(ctx, "localstore.write_failed", key, err)
		return err
	}
	return nil
}

func (s *Store) remove(ctx context.Context, key string) error {
	if err := s.kv.Remove(ctx, key); err != nil {
		s.logFailure(ctx, "localstore.remove_failed", key, err)
		return err
	}
	return nil
}

func (s *Store) logFailure(ctx context.Context, msg, key string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "key", key), msg, err)
}

func (s *Store) lock() {
	s.mu.Lock()
}

// unlock releases mu, then delivers the events queued while it was held.
func (s *Store) unlock() {
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, evt := range queued {
		s.bus.Publish(evt)
	}
}

// publish queues an event; callers hold mu.
func (s *Store) publish(name events.Name, action events.Action, entityID, userID, listingID string) {
	s.pending = append(s.pending, events.Event{
		Name:       name,
		Action:     action,
		EntityID:   entityID,
		UserID:     userID,
		ListingID:  listingID,
		OccurredAt: s.now(),
	})
}

func (s *Store) mintID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, s.now().UnixMilli(), rand.IntN(1000))
}
