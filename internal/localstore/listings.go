package localstore

import (
	"context"
	"slices"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

func (s *Store) readListings(ctx context.Context) ([]domain.FoodListing, error) {
	var listings []domain.FoodListing
	if err := s.load(ctx, KeyListings, &listings); err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i] = normalizeListing(listings[i])
	}
	return listings, nil
}

// normalizeListing maps a stored document onto the entity model, filling the
// defaults older records may lack.
func normalizeListing(l domain.FoodListing) domain.FoodListing {
	if l.Images == nil {
		l.Images = []string{}
	}
	if l.Category == "" {
		l.Category = enums.FoodCategoryOther
	}
	if l.Status == "" {
		l.Status = enums.ListingStatusAvailable
	}
	return l
}

func findListing(listings []domain.FoodListing, id string) int {
	return slices.IndexFunc(listings, func(l domain.FoodListing) bool { return l.ID == id })
}

// CreateListing never rejects input: missing fields take their defaults and
// the record is prepended to the collection.
func (s *Store) CreateListing(ctx context.Context, fields domain.FoodListing) domain.FoodListing {
	s.lock()
	defer s.unlock()
	return s.createListingLocked(ctx, fields)
}

func (s *Store) createListingLocked(ctx context.Context, fields domain.FoodListing) domain.FoodListing {
	listings, readErr := s.readListings(ctx)
	listing := s.newListing(fields, listings)
	if readErr != nil {
		return listing
	}
	listings = append([]domain.FoodListing{listing}, listings...)
	if err := s.save(ctx, KeyListings, listings); err != nil {
		return listing
	}
	s.publish(events.ListingsChanged, events.ActionCreated, listing.ID, listing.DonorID, listing.ID)
	return listing
}

func (s *Store) newListing(fields domain.FoodListing, existing []domain.FoodListing) domain.FoodListing {
	now := s.now()
	listing := fields
	listing.ID = s.mintID("local")
	for findListing(existing, listing.ID) >= 0 {
		listing.ID = s.mintID("local")
	}
	if listing.DonorID == "" {
		listing.DonorID = DevDonorID
	}
	if listing.Title == "" {
		listing.Title = "Untitled"
	}
	if listing.ExpiryDate.IsZero() {
		listing.ExpiryDate = now
	}
	if listing.PickupTimeStart.IsZero() {
		listing.PickupTimeStart = now
	}
	if listing.PickupTimeEnd.IsZero() {
		listing.PickupTimeEnd = now
	}
	listing.Images = append([]string{}, fields.Images...)
	listing.ClaimedBy = ""
	listing.ClaimedAt = nil
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return normalizeListing(listing)
}

// UpdateListing merges patch into the stored record and refreshes updated_at.
func (s *Store) UpdateListing(ctx context.Context, id string, patch domain.ListingPatch) (domain.FoodListing, error) {
	s.lock()
	defer s.unlock()

	listings, _ := s.readListings(ctx)
	idx := findListing(listings, id)
	if idx < 0 {
		return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	updated := patch.Apply(listings[idx])
	if now := s.now(); now.After(updated.UpdatedAt) {
		updated.UpdatedAt = now
	}
	listings[idx] = updated
	if err := s.save(ctx, KeyListings, listings); err != nil {
		return updated, nil
	}
	s.publish(events.ListingsChanged, events.ActionUpdated, id, updated.DonorID, id)
	return updated, nil
}

// DeleteListing removes the record when present. The change is broadcast
// either way.
func (s *Store) DeleteListing(ctx context.Context, id string) {
	s.lock()
	defer s.unlock()

	listings, err := s.readListings(ctx)
	if err != nil {
		return
	}
	if idx := findListing(listings, id); idx >= 0 {
		listings = slices.Delete(listings, idx, idx+1)
	}
	if s.save(ctx, KeyListings, listings) != nil {
		return
	}
	s.publish(events.ListingsChanged, events.ActionDeleted, id, "", id)
}

func (s *Store) GetListing(ctx context.Context, id string) (domain.FoodListing, error) {
	s.lock()
	defer s.unlock()

	listings, _ := s.readListings(ctx)
	idx := findListing(listings, id)
	if idx < 0 {
		return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return listings[idx], nil
}

// ListAvailableListings seeds the sample set into an empty collection, then
// returns listings that are available and not yet expired.
func (s *Store) ListAvailableListings(ctx context.Context) []domain.FoodListing {
	s.lock()
	defer s.unlock()

	listings, err := s.seedIfEmptyLocked(ctx)
	if err != nil {
		return []domain.FoodListing{}
	}
	now := s.now()
	out := make([]domain.FoodListing, 0, len(listings))
	for _, l := range listings {
		if l.IsAvailableAt(now) {
			out = append(out, l)
		}
	}
	return out
}

// ListAllListings returns every stored listing regardless of status.
func (s *Store) ListAllListings(ctx context.Context) []domain.FoodListing {
	s.lock()
	defer s.unlock()

	listings, _ := s.readListings(ctx)
	if listings == nil {
		return []domain.FoodListing{}
	}
	return listings
}

func (s *Store) ListListingsByDonor(ctx context.Context, donorID string) []domain.FoodListing {
	s.lock()
	defer s.unlock()

	listings, _ := s.readListings(ctx)
	out := []domain.FoodListing{}
	for _, l := range listings {
		if l.DonorID == donorID {
			out = append(out, l)
		}
	}
	return out
}

// ExpireListings moves available listings whose expiry passed before now to
// expired and returns how many changed.
func (s *Store) ExpireListings(ctx context.Context) int {
	s.lock()
	defer s.unlock()

	listings, err := s.readListings(ctx)
	if err != nil {
		return 0
	}
	now := s.now()
	changed := 0
	for i := range listings {
		if listings[i].Status == enums.ListingStatusAvailable && listings[i].ExpiryDate.Before(now) {
			listings[i].Status = enums.ListingStatusExpired
			listings[i].UpdatedAt = now
			changed++
		}
	}
	if changed == 0 {
		return 0
	}
	if s.save(ctx, KeyListings, listings) != nil {
		return 0
	}
	s.publish(events.ListingsChanged, events.ActionUpdated, "", "", "")
	return changed
}

// claimListingLocked marks the listing claimed; callers hold the store lock.
func (s *Store) claimListingLocked(ctx context.Context, listingID, userID string) error {
	listings, err := s.readListings(ctx)
	if err != nil {
		return err
	}
	idx := findListing(listings, listingID)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	at := s.now()
	listings[idx].Status = enums.ListingStatusClaimed
	listings[idx].ClaimedBy = userID
	listings[idx].ClaimedAt = &at
	return s.save(ctx, KeyListings, listings)
}
