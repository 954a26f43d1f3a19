package listings

import (
	"context"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

// CreateListing stores a listing owned by the actor. A hosted failure falls
// back to the Local Device Store.
func (s *service) CreateListing(ctx context.Context, actor domain.Actor, input domain.FoodListing) (domain.FoodListing, error) {
	input.DonorID = actor.UserID
	input.Status = enums.ListingStatusAvailable
	if input.Category == "" {
		input.Category = enums.FoodCategoryOther
	}

	if s.useLocal(actor.UserID) {
		return s.local.CreateListing(ctx, input), nil
	}

	donorID, err := parseHostedID(actor.UserID, "donor")
	if err != nil {
		return domain.FoodListing{}, err
	}
	model := toListingModel(input, donorID)
	started := time.Now()
	err = s.repo.CreateListing(ctx, model)
	s.observe("create_listing", started, err)
	if err != nil {
		s.fallback(ctx, "create_listing", err)
		return s.local.CreateListing(ctx, input), nil
	}

	listing := toDomainListing(*model)
	s.publish(events.ListingsChanged, events.ActionCreated, listing.ID, listing.DonorID, listing.ID)
	return listing, nil
}

// GetListing loads one listing. Non-UUID ids resolve against the Local Device
// Store, as does any hosted failure other than not-found.
func (s *service) GetListing(ctx context.Context, id string) (domain.FoodListing, error) {
	if s.useLocal(id) {
		return s.local.GetListing(ctx, id)
	}
	listing, err := s.getHostedListing(ctx, id)
	if err == nil || isNotFound(err) {
		return listing, err
	}
	s.fallback(ctx, "get_listing", err)
	return s.local.GetListing(ctx, id)
}

func (s *service) getHostedListing(ctx context.Context, id string) (domain.FoodListing, error) {
	hostedID, err := parseHostedID(id, "listing")
	if err != nil {
		return domain.FoodListing{}, err
	}
	started := time.Now()
	row, err := s.repo.FindListing(ctx, hostedID)
	s.observe("get_listing", started, err)
	if err != nil {
		if isNotFound(err) {
			return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return domain.FoodListing{}, err
	}
	return toDomainListing(*row), nil
}

// UpdateListing merges the patch into the listing. Hosted failures surface as
// DEPENDENCY_ERROR and are never retried against the local store.
func (s *service) UpdateListing(ctx context.Context, actor domain.Actor, id string, patch domain.ListingPatch) (domain.FoodListing, error) {
	if patch.IsEmpty() {
		return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if s.useLocal(id) {
		current, err := s.local.GetListing(ctx, id)
		if err != nil {
			return domain.FoodListing{}, err
		}
		if !actor.Owns(current.DonorID) {
			return domain.FoodListing{}, notOwner()
		}
		return s.local.UpdateListing(ctx, id, patch)
	}

	hostedID, err := parseHostedID(id, "listing")
	if err != nil {
		return domain.FoodListing{}, err
	}
	started := time.Now()
	row, err := s.repo.FindListing(ctx, hostedID)
	s.observe("get_listing", started, err)
	if err != nil {
		if isNotFound(err) {
			return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return domain.FoodListing{}, dependencyError(err, "could not load listing")
	}
	current := toDomainListing(*row)
	if !actor.Owns(current.DonorID) {
		return domain.FoodListing{}, notOwner()
	}

	updated := patch.Apply(current)
	if now := s.now(); now.After(updated.UpdatedAt) {
		updated.UpdatedAt = now
	}
	applyToModel(row, updated)
	started = time.Now()
	err = s.repo.SaveListing(ctx, row)
	s.observe("update_listing", started, err)
	if err != nil {
		return domain.FoodListing{}, dependencyError(err, "could not update listing")
	}

	listing := toDomainListing(*row)
	s.publish(events.ListingsChanged, events.ActionUpdated, listing.ID, listing.DonorID, listing.ID)
	return listing, nil
}

// DeleteListing removes the listing. Hosted failures surface as DEPENDENCY_ERROR.
func (s *service) DeleteListing(ctx context.Context, actor domain.Actor, id string) error {
	if s.useLocal(id) {
		current, err := s.local.GetListing(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(current.DonorID) {
			return notOwner()
		}
		s.local.DeleteListing(ctx, id)
		return nil
	}

	hostedID, err := parseHostedID(id, "listing")
	if err != nil {
		return err
	}
	started := time.Now()
	row, err := s.repo.FindListing(ctx, hostedID)
	s.observe("get_listing", started, err)
	if err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return dependencyError(err, "could not load listing")
	}
	if !actor.Owns(row.DonorID.String()) {
		return notOwner()
	}

	started = time.Now()
	_, err = s.repo.DeleteListing(ctx, hostedID)
	s.observe("delete_listing", started, err)
	if err != nil {
		return dependencyError(err, "could not delete listing")
	}
	s.publish(events.ListingsChanged, events.ActionDeleted, id, row.DonorID.String(), id)
	return nil
}

// CompleteListing records that the donor handed the food over.
func (s *service) CompleteListing(ctx context.Context, actor domain.Actor, id string) (domain.FoodListing, error) {
	var current domain.FoodListing
	var err error
	if s.useLocal(id) {
		current, err = s.local.GetListing(ctx, id)
	} else {
		current, err = s.getHostedListing(ctx, id)
		if err != nil && !isNotFound(err) {
			err = dependencyError(err, "could not load listing")
		}
	}
	if err != nil {
		return domain.FoodListing{}, err
	}
	if !actor.Owns(current.DonorID) {
		return domain.FoodListing{}, notOwner()
	}
	switch current.Status {
	case enums.ListingStatusAvailable, enums.ListingStatusClaimed:
	default:
		return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing cannot be completed").
			WithDetails(map[string]any{"status": current.Status})
	}

	status := enums.ListingStatusCompleted
	return s.UpdateListing(ctx, actor, id, domain.ListingPatch{Status: &status})
}

// ListAvailable returns browsable listings. A hosted failure falls back to the
// Local Device Store.
func (s *service) ListAvailable(ctx context.Context) ([]domain.FoodListing, error) {
	if s.mode == ModeLocal {
		return s.local.ListAvailableListings(ctx), nil
	}
	started := time.Now()
	rows, err := s.repo.ListAvailable(ctx, s.now())
	s.observe("list_available", started, err)
	if err != nil {
		s.fallback(ctx, "list_available", err)
		return s.local.ListAvailableListings(ctx), nil
	}
	return toDomainListings(rows), nil
}

// ListDonorListings returns the actor's own listings. In hosted mode locally
// created listings of the actor are merged in, hosted records winning.
func (s *service) ListDonorListings(ctx context.Context, actor domain.Actor) ([]domain.FoodListing, error) {
	local := s.local.ListListingsByDonor(ctx, actor.UserID)
	if s.useLocal(actor.UserID) {
		return local, nil
	}
	donorID, err := parseHostedID(actor.UserID, "donor")
	if err != nil {
		return local, nil
	}
	started := time.Now()
	rows, err := s.repo.ListByDonor(ctx, donorID)
	s.observe("list_by_donor", started, err)
	if err != nil {
		s.fallback(ctx, "list_by_donor", err)
		return local, nil
	}
	return mergeByID(toDomainListings(rows), local, listingID, listingCreated), nil
}

// ListAllListings returns every listing regardless of status.
func (s *service) ListAllListings(ctx context.Context) ([]domain.FoodListing, error) {
	if s.mode == ModeLocal {
		return s.local.ListAllListings(ctx), nil
	}
	started := time.Now()
	rows, err := s.repo.ListAll(ctx)
	s.observe("list_all", started, err)
	if err != nil {
		s.fallback(ctx, "list_all", err)
		return s.local.ListAllListings(ctx), nil
	}
	return toDomainListings(rows), nil
}

// ExpireListings marks lapsed available listings expired. In hosted mode the
// local store is swept too since fallback writes may have landed there.
func (s *service) ExpireListings(ctx context.Context, limit int) (int, error) {
	expired := s.local.ExpireListings(ctx)
	if s.mode == ModeLocal {
		return expired, nil
	}
	started := time.Now()
	n, err := s.repo.ExpireBefore(ctx, s.now(), limit)
	s.observe("expire_listings", started, err)
	if err != nil {
		return expired, dependencyError(err, "could not expire listings")
	}
	if n > 0 {
		s.publish(events.ListingsChanged, events.ActionUpdated, "", "", "")
	}
	return expired + int(n), nil
}
