// Package admin backs the moderation console: overview counts, user
// management and listing/claim moderation. User rows come from profiles in
// hosted mode and from the device credential table otherwise; listings and
// claims always go through the listing facade.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/internal/users"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Overview is the console's headline counters.
type Overview struct {
	TotalUsers        int `json:"total_users"`
	TotalDonors       int `json:"total_donors"`
	TotalListings     int `json:"total_listings"`
	AvailableListings int `json:"available_listings"`
	TotalClaims       int `json:"total_claims"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
	ListUsers(ctx context.Context) ([]domain.Profile, error)
	DeleteUser(ctx context.Context, actor domain.Actor, userID string) error
	SetRole(ctx context.Context, actor domain.Actor, userID string, role enums.ProfileRole) (domain.Profile, error)

	ListListings(ctx context.Context) ([]domain.FoodListing, error)
	DeleteListing(ctx context.Context, actor domain.Actor, listingID string) error
	ListClaims(ctx context.Context) ([]domain.Claim, error)
	ApproveClaim(ctx context.Context, actor domain.Actor, claimID string) (domain.Claim, error)
	RejectClaim(ctx context.Context, actor domain.Actor, claimID string) (domain.Claim, error)
}

// LocalUsers is the device credential table.
type LocalUsers interface {
	ListUsers(ctx context.Context) []localstore.User
	DeleteUser(ctx context.Context, id string) error
	SetRole(ctx context.Context, userID string, role enums.ProfileRole) (domain.Profile, error)
}

// ServiceParams wires the console. A nil Users repository selects the device
// credential table for user management.
type ServiceParams struct {
	Listings listings.Service
	Users    *users.Repository
	Local    LocalUsers
	Bus      events.Publisher
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	listings listings.Service
	users    *users.Repository
	local    LocalUsers
	bus      events.Publisher
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Listings == nil {
		return nil, fmt.Errorf("listings service required")
	}
	if p.Local == nil {
		return nil, fmt.Errorf("local users required")
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
	return &service{
		listings: p.Listings,
		users:    p.Users,
		local:    p.Local,
		bus:      bus,
		logg:     p.Logger,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

// Overview counts donors as the distinct donor ids across all listings.
func (s *service) Overview(ctx context.Context) (Overview, error) {
	profiles, err := s.ListUsers(ctx)
	if err != nil {
		return Overview{}, err
	}
	all, err := s.listings.ListAllListings(ctx)
	if err != nil {
		return Overview{}, err
	}
	claims, err := s.listings.ListAllClaims(ctx)
	if err != nil {
		return Overview{}, err
	}

	donors := map[string]struct{}{}
	out := Overview{TotalUsers: len(profiles), TotalListings: len(all), TotalClaims: len(claims)}
	for _, l := range all {
		donors[l.DonorID] = struct{}{}
		if l.IsAvailableAt(s.now()) {
			out.AvailableListings++
		}
	}
	out.TotalDonors = len(donors)
	return out, nil
}

func (s *service) ListUsers(ctx context.Context) ([]domain.Profile, error) {
	if s.users == nil {
		rows := s.local.ListUsers(ctx)
		out := make([]domain.Profile, 0, len(rows))
		for _, u := range rows {
			p := u.Profile
			if p.UserID == "" {
				p.UserID = u.ID
			}
			if p.FullName == "" {
				p.FullName = u.Email
			}
			if p.Role == "" {
				p.Role = enums.ProfileRoleUser
			}
			out = append(out, p)
		}
		return out, nil
	}

	rows, err := s.users.ListProfiles(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list profiles")
	}
	out := make([]domain.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, users.ToDomainProfile(row))
	}
	return out, nil
}

func (s *service) DeleteUser(ctx context.Context, actor domain.Actor, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if userID == actor.UserID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "admins cannot delete their own account")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"actor_id": actor.UserID, "target_user_id": userID})

	id, hosted := s.hostedID(userID)
	if !hosted {
		if err := s.local.DeleteUser(ctx, userID); err != nil {
			return err
		}
		s.logg.Info(ctx, "admin.user_deleted")
		return nil
	}

	affected, err := s.users.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	s.bus.Publish(events.Event{
		Name:       events.ProfileChanged,
		Action:     events.ActionDeleted,
		EntityID:   userID,
		UserID:     userID,
		OccurredAt: s.now(),
	})
	s.logg.Info(ctx, "admin.user_deleted")
	return nil
}

func (s *service) SetRole(ctx context.Context, actor domain.Actor, userID string, role enums.ProfileRole) (domain.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !role.IsValid() {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "role must be user or admin")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"actor_id":       actor.UserID,
		"target_user_id": userID,
		"role":           string(role),
	})

	id, hosted := s.hostedID(userID)
	if !hosted {
		profile, err := s.local.SetRole(ctx, userID, role)
		if err != nil {
			return domain.Profile{}, err
		}
		s.logg.Info(ctx, "admin.role_changed")
		return profile, nil
	}

	affected, err := s.users.SetRole(ctx, id, role)
	if err != nil {
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	if affected == 0 {
		return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	row, err := s.users.FindProfile(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return domain.Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return domain.Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	profile := users.ToDomainProfile(*row)
	s.bus.Publish(events.Event{
		Name:       events.ProfileChanged,
		Action:     events.ActionUpdated,
		EntityID:   profile.ID,
		UserID:     profile.UserID,
		OccurredAt: s.now(),
	})
	s.logg.Info(ctx, "admin.role_changed")
	return profile, nil
}

// hostedID reports whether userID addresses a hosted row. Device ids are not
// UUIDs and always resolve against the credential table.
func (s *service) hostedID(userID string) (uuid.UUID, bool) {
	if s.users == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *service) ListListings(ctx context.Context) ([]domain.FoodListing, error) {
	return s.listings.ListAllListings(ctx)
}

func (s *service) DeleteListing(ctx context.Context, actor domain.Actor, listingID string) error {
	return s.listings.DeleteListing(ctx, asAdmin(actor), listingID)
}

func (s *service) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	return s.listings.ListAllClaims(ctx)
}

func (s *service) ApproveClaim(ctx context.Context, actor domain.Actor, claimID string) (domain.Claim, error) {
	return s.listings.SetClaimStatus(ctx, asAdmin(actor), claimID, enums.ClaimStatusCollected)
}

func (s *service) RejectClaim(ctx context.Context, actor domain.Actor, claimID string) (domain.Claim, error) {
	return s.listings.SetClaimStatus(ctx, asAdmin(actor), claimID, enums.ClaimStatusCancelled)
}

// DeleteListings removes several listings, collecting every failure.
func DeleteListings(ctx context.Context, svc Service, actor domain.Actor, ids []string) error {
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, svc.DeleteListing(ctx, actor, id))
	}
	return errs
}

func asAdmin(actor domain.Actor) domain.Actor {
	actor.Role = enums.ProfileRoleAdmin
	return actor
}
