// Package listings is the single entry point for listing and claim data. The
// backing store is chosen once, at construction: the hosted relational store
// when a repository is supplied, otherwise the Local Device Store.
package listings

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/google/uuid"
)

type Mode string

const (
	ModeHosted Mode = "hosted"
	ModeLocal  Mode = "local"
)

// Service exposes listing and claim operations independent of the backing store.
type Service interface {
	Mode() Mode

	CreateListing(ctx context.Context, actor domain.Actor, input domain.FoodListing) (domain.FoodListing, error)
	UpdateListing(ctx context.Context, actor domain.Actor, id string, patch domain.ListingPatch) (domain.FoodListing, error)
	DeleteListing(ctx context.Context, actor domain.Actor, id string) error
	CompleteListing(ctx context.Context, actor domain.Actor, id string) (domain.FoodListing, error)
	GetListing(ctx context.Context, id string) (domain.FoodListing, error)
	ListAvailable(ctx context.Context) ([]domain.FoodListing, error)
	ListDonorListings(ctx context.Context, actor domain.Actor) ([]domain.FoodListing, error)
	ListAllListings(ctx context.Context) ([]domain.FoodListing, error)
	ExpireListings(ctx context.Context, limit int) (int, error)

	CreateClaim(ctx context.Context, actor domain.Actor, listingID string, quantity int) (domain.Claim, error)
	GetClaim(ctx context.Context, actor domain.Actor, id string) (domain.Claim, error)
	ListClaimsByUser(ctx context.Context, actor domain.Actor) ([]domain.Claim, error)
	ListClaimsForDonor(ctx context.Context, actor domain.Actor) ([]domain.Claim, error)
	ListAllClaims(ctx context.Context) ([]domain.Claim, error)
	SetClaimStatus(ctx context.Context, actor domain.Actor, id string, status enums.ClaimStatus) (domain.Claim, error)
}

// LocalStore is the Local Device Store surface the facade routes to.
type LocalStore interface {
	CreateListing(ctx context.Context, fields domain.FoodListing) domain.FoodListing
	UpdateListing(ctx context.Context, id string, patch domain.ListingPatch) (domain.FoodListing, error)
	DeleteListing(ctx context.Context, id string)
	GetListing(ctx context.Context, id string) (domain.FoodListing, error)
	ListAvailableListings(ctx context.Context) []domain.FoodListing
	ListAllListings(ctx context.Context) []domain.FoodListing
	ListListingsByDonor(ctx context.Context, donorID string) []domain.FoodListing
	ExpireListings(ctx context.Context) int

	CreateClaim(ctx context.Context, listingID, claimantID string, quantity int) domain.Claim
	GetClaim(ctx context.Context, id string) (domain.Claim, error)
	ListClaimsByUser(ctx context.Context, userID string) []domain.Claim
	ListClaimsForListings(ctx context.Context, listingIDs []string) []domain.Claim
	ListAllClaims(ctx context.Context) []domain.Claim
	UpdateClaimStatus(ctx context.Context, id string, status enums.ClaimStatus) (domain.Claim, error)
}

// Notifier delivers in-app notifications about claim activity.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind enums.NotificationType, title, message, listingID string)
}

// ServiceParams wires the facade. A nil Repo selects local mode.
type ServiceParams struct {
	Repo     *Repository
	Local    LocalStore
	Bus      events.Publisher
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
	Clock    func() time.Time
}

type service struct {
	mode     Mode
	repo     *Repository
	local    LocalStore
	bus      events.Publisher
	notifier Notifier
	logg     *logger.Logger
	metrics  *metrics.StoreMetrics
	now      func() time.Time
}

// NewService constructs the facade.
func NewService(p ServiceParams) (Service, error) {
	if p.Local == nil {
		return nil, fmt.Errorf("local store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	mode := ModeLocal
	if p.Repo != nil {
		mode = ModeHosted
	}
	bus := p.Bus
	if bus == nil {
		bus = events.Discard{}
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		mode:     mode,
		repo:     p.Repo,
		local:    p.Local,
		bus:      bus,
		notifier: p.Notifier,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) Mode() Mode { return s.mode }

// useLocal reports whether an operation on the given ids must go to the Local
// Device Store: always in local mode, and in hosted mode for ids no hosted row
// could carry.
func (s *service) useLocal(ids ...string) bool {
	if s.mode == ModeLocal {
		return true
	}
	for _, id := range ids {
		if domain.IsLocalID(id) {
			return true
		}
	}
	return false
}

func (s *service) observe(op string, started time.Time, err error) {
	if db.IsNotFound(err) {
		err = nil
	}
	s.metrics.Observe(metrics.StoreHosted, op, started, err)
}

func (s *service) fallback(ctx context.Context, op string, err error) {
	s.metrics.IncFallback(op)
	ctx = s.logg.WithStoreMode(ctx, string(s.mode))
	ctx = s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	s.logg.Warn(s.logg.WithField(ctx, "op", op), "listings.hosted_fallback")
}

func (s *service) publish(name events.Name, action events.Action, entityID, userID, listingID string) {
	s.bus.Publish(events.Event{
		Name:       name,
		Action:     action,
		EntityID:   entityID,
		UserID:     userID,
		ListingID:  listingID,
		OccurredAt: s.now(),
	})
}

func (s *service) notify(ctx context.Context, userID string, kind enums.NotificationType, title, message, listingID string) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Notify(ctx, userID, kind, title, message, listingID)
}

func dependencyError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func parseHostedID(id, what string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return parsed, nil
}

// mergeByID unions local records into hosted ones keyed by id. Hosted records
// win on conflict; the result is ordered newest first by the given time.
func mergeByID[T any](hosted, local []T, id func(T) string, at func(T) time.Time) []T {
	seen := make(map[string]struct{}, len(hosted))
	for _, h := range hosted {
		seen[id(h)] = struct{}{}
	}
	out := make([]T, 0, len(hosted)+len(local))
	out = append(out, hosted...)
	for _, l := range local {
		if _, dup := seen[id(l)]; !dup {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(at(b).UnixNano(), at(a).UnixNano()) })
	return out
}

func listingID(l domain.FoodListing) string       { return l.ID }
func listingCreated(l domain.FoodListing) time.Time { return l.CreatedAt }
func claimID(c domain.Claim) string               { return c.ID }
func claimCreated(c domain.Claim) time.Time       { return c.ClaimedAt }

func notOwner() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the donor or an admin may change this listing")
}

func isNotFound(err error) bool {
	return db.IsNotFound(err) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound)
}
