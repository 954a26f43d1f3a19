package localstore

import (
	"context"
	"slices"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

func (s *Store) readClaims(ctx context.Context) ([]domain.Claim, error) {
	var claims []domain.Claim
	if err := s.load(ctx, KeyClaims, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// CreateClaim records a pending claim with a best-effort snapshot of the
// listing and its donor, then marks the listing claimed.
func (s *Store) CreateClaim(ctx context.Context, listingID, claimantID string, quantity int) domain.Claim {
	s.lock()
	defer s.unlock()

	if quantity <= 0 {
		quantity = 1
	}
	claim := domain.Claim{
		ID:                s.mintID("claim"),
		ListingID:         listingID,
		ClaimedBy:         claimantID,
		QuantityRequested: quantity,
		Status:            enums.ClaimStatusPending,
		ClaimedAt:         s.now(),
	}
	claim.Listing = s.snapshotLocked(ctx, listingID)

	claims, err := s.readClaims(ctx)
	if err != nil {
		return claim
	}
	claims = append([]domain.Claim{claim}, claims...)
	if s.save(ctx, KeyClaims, claims) != nil {
		return claim
	}

	if err := s.claimListingLocked(ctx, listingID, claimantID); err == nil {
		s.publish(events.ListingsChanged, events.ActionUpdated, listingID, claimantID, listingID)
	}
	s.publish(events.ClaimsChanged, events.ActionCreated, claim.ID, claimantID, listingID)
	return claim
}

// snapshotLocked resolves the listing plus donor profile; absence of either is
// tolerated.
func (s *Store) snapshotLocked(ctx context.Context, listingID string) *domain.ListingSnapshot {
	listings, err := s.readListings(ctx)
	if err != nil {
		return nil
	}
	idx := findListing(listings, listingID)
	if idx < 0 {
		return nil
	}
	listing := listings[idx]
	return domain.NewListingSnapshot(listing, s.profileLocked(ctx, listing.DonorID))
}

// ListClaimsByUser returns the user's claims, attaching a listing snapshot to
// any claim that lacks one. The enrichment is not written back.
func (s *Store) ListClaimsByUser(ctx context.Context, userID string) []domain.Claim {
	s.lock()
	defer s.unlock()

	claims, _ := s.readClaims(ctx)
	out := []domain.Claim{}
	for _, c := range claims {
		if c.ClaimedBy != userID {
			continue
		}
		if c.Listing == nil {
			c.Listing = s.snapshotLocked(ctx, c.ListingID)
		}
		out = append(out, c)
	}
	return out
}

// ListClaimsForListings returns claims against any of the given listings.
func (s *Store) ListClaimsForListings(ctx context.Context, listingIDs []string) []domain.Claim {
	s.lock()
	defer s.unlock()

	claims, _ := s.readClaims(ctx)
	out := []domain.Claim{}
	for _, c := range claims {
		if slices.Contains(listingIDs, c.ListingID) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) ListAllClaims(ctx context.Context) []domain.Claim {
	s.lock()
	defer s.unlock()

	claims, _ := s.readClaims(ctx)
	if claims == nil {
		return []domain.Claim{}
	}
	return claims
}

func (s *Store) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	s.lock()
	defer s.unlock()

	claims, _ := s.readClaims(ctx)
	idx := slices.IndexFunc(claims, func(c domain.Claim) bool { return c.ID == id })
	if idx < 0 {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
	}
	claim := claims[idx]
	if claim.Listing == nil {
		claim.Listing = s.snapshotLocked(ctx, claim.ListingID)
	}
	return claim, nil
}

// UpdateClaimStatus moves a claim to status. Collected claims get received_at.
// The listing keeps its claimed state.
func (s *Store) UpdateClaimStatus(ctx context.Context, id string, status enums.ClaimStatus) (domain.Claim, error) {
	s.lock()
	defer s.unlock()

	claims, _ := s.readClaims(ctx)
	idx := slices.IndexFunc(claims, func(c domain.Claim) bool { return c.ID == id })
	if idx < 0 {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
	}
	claims[idx].Status = status
	if status == enums.ClaimStatusCollected {
		at := s.now()
		claims[idx].ReceivedAt = &at
	}
	updated := claims[idx]
	if s.save(ctx, KeyClaims, claims) != nil {
		return updated, nil
	}
	s.publish(events.ClaimsChanged, events.ActionUpdated, id, updated.ClaimedBy, updated.ListingID)
	return updated, nil
}
