package listings

import (
	"context"
	"errors"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

// CreateClaim records the actor's claim on an available listing they do not
// own. Dependency failures on the hosted path fall back to the Local Device
// Store; an unavailable listing never does.
func (s *service) CreateClaim(ctx context.Context, actor domain.Actor, listingID string, quantity int) (domain.Claim, error) {
	if quantity <= 0 {
		quantity = 1
	}
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return domain.Claim{}, err
	}
	if listing.DonorID == actor.UserID {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot claim your own listing")
	}
	if !listing.IsAvailableAt(s.now()) {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not available").
			WithDetails(map[string]any{"status": listing.Status})
	}

	claim, err := s.createClaim(ctx, actor, listing, quantity)
	if err != nil {
		return domain.Claim{}, err
	}
	s.notify(ctx, listing.DonorID, enums.NotificationTypeClaimCreated,
		"New claim", "Your listing \""+listing.Title+"\" was claimed.", listing.ID)
	return claim, nil
}

func (s *service) createClaim(ctx context.Context, actor domain.Actor, listing domain.FoodListing, quantity int) (domain.Claim, error) {
	if s.useLocal(listing.ID, actor.UserID) {
		return s.local.CreateClaim(ctx, listing.ID, actor.UserID, quantity), nil
	}

	listingID, err := parseHostedID(listing.ID, "listing")
	if err != nil {
		return domain.Claim{}, err
	}
	claimantID, err := parseHostedID(actor.UserID, "claimant")
	if err != nil {
		return domain.Claim{}, err
	}
	row := &models.Claim{
		ListingID:         listingID,
		ClaimedBy:         claimantID,
		QuantityRequested: quantity,
		Status:            enums.ClaimStatusPending,
		ClaimedAt:         s.now(),
	}
	started := time.Now()
	err = s.repo.CreateClaim(ctx, row)
	s.observe("create_claim", started, err)
	if errors.Is(err, ErrListingUnavailable) {
		return domain.Claim{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "listing is not available")
	}
	if err != nil {
		s.fallback(ctx, "create_claim", err)
		return s.local.CreateClaim(ctx, listing.ID, actor.UserID, quantity), nil
	}

	claim := toDomainClaim(*row)
	claimed := listing
	claimed.Status = enums.ListingStatusClaimed
	claimed.ClaimedBy = actor.UserID
	claimed.ClaimedAt = &row.ClaimedAt
	claim.Listing = domain.NewListingSnapshot(claimed, nil)
	if loaded, err := s.repo.FindClaim(ctx, row.ID); err == nil {
		claim = toDomainClaim(*loaded)
	}

	s.publish(events.ListingsChanged, events.ActionUpdated, listing.ID, actor.UserID, listing.ID)
	s.publish(events.ClaimsChanged, events.ActionCreated, claim.ID, actor.UserID, listing.ID)
	return claim, nil
}

// GetClaim loads a claim visible to the actor: the claimant, the listing's
// donor or an admin.
func (s *service) GetClaim(ctx context.Context, actor domain.Actor, id string) (domain.Claim, error) {
	claim, err := s.loadClaim(ctx, id, true)
	if err != nil {
		return domain.Claim{}, err
	}
	if !s.canSeeClaim(ctx, actor, claim) {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeForbidden, "claim belongs to another user")
	}
	return claim, nil
}

// loadClaim resolves a claim by id. With allowFallback a hosted failure reads
// the Local Device Store instead of surfacing.
func (s *service) loadClaim(ctx context.Context, id string, allowFallback bool) (domain.Claim, error) {
	if s.useLocal(id) {
		return s.local.GetClaim(ctx, id)
	}
	hostedID, err := parseHostedID(id, "claim")
	if err != nil {
		return domain.Claim{}, err
	}
	started := time.Now()
	row, err := s.repo.FindClaim(ctx, hostedID)
	s.observe("get_claim", started, err)
	switch {
	case err == nil:
		return toDomainClaim(*row), nil
	case isNotFound(err):
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeNotFound, "claim not found")
	case allowFallback:
		s.fallback(ctx, "get_claim", err)
		return s.local.GetClaim(ctx, id)
	default:
		return domain.Claim{}, dependencyError(err, "could not load claim")
	}
}

func (s *service) claimDonor(ctx context.Context, claim domain.Claim) string {
	if claim.Listing != nil && claim.Listing.DonorID != "" {
		return claim.Listing.DonorID
	}
	listing, err := s.GetListing(ctx, claim.ListingID)
	if err != nil {
		return ""
	}
	return listing.DonorID
}

func (s *service) canSeeClaim(ctx context.Context, actor domain.Actor, claim domain.Claim) bool {
	if actor.IsAdmin() || claim.ClaimedBy == actor.UserID {
		return true
	}
	donor := s.claimDonor(ctx, claim)
	return donor != "" && donor == actor.UserID
}

// ListClaimsByUser returns the actor's own claims. Hosted results are merged
// with claims recorded locally.
func (s *service) ListClaimsByUser(ctx context.Context, actor domain.Actor) ([]domain.Claim, error) {
	local := s.local.ListClaimsByUser(ctx, actor.UserID)
	if s.useLocal(actor.UserID) {
		return local, nil
	}
	userID, err := parseHostedID(actor.UserID, "user")
	if err != nil {
		return local, nil
	}
	started := time.Now()
	rows, err := s.repo.ListClaimsByUser(ctx, userID)
	s.observe("list_claims_by_user", started, err)
	if err != nil {
		s.fallback(ctx, "list_claims_by_user", err)
		return local, nil
	}
	return mergeByID(toDomainClaims(rows), local, claimID, claimCreated), nil
}

// ListClaimsForDonor returns incoming claims against the actor's listings.
func (s *service) ListClaimsForDonor(ctx context.Context, actor domain.Actor) ([]domain.Claim, error) {
	owned := s.local.ListListingsByDonor(ctx, actor.UserID)
	ids := make([]string, 0, len(owned))
	for _, l := range owned {
		ids = append(ids, l.ID)
	}
	local := s.local.ListClaimsForListings(ctx, ids)
	if s.useLocal(actor.UserID) {
		return local, nil
	}
	donorID, err := parseHostedID(actor.UserID, "donor")
	if err != nil {
		return local, nil
	}
	started := time.Now()
	rows, err := s.repo.ListClaimsForDonor(ctx, donorID)
	s.observe("list_claims_for_donor", started, err)
	if err != nil {
		s.fallback(ctx, "list_claims_for_donor", err)
		return local, nil
	}
	return mergeByID(toDomainClaims(rows), local, claimID, claimCreated), nil
}

func (s *service) ListAllClaims(ctx context.Context) ([]domain.Claim, error) {
	if s.mode == ModeLocal {
		return s.local.ListAllClaims(ctx), nil
	}
	started := time.Now()
	rows, err := s.repo.ListAllClaims(ctx)
	s.observe("list_all_claims", started, err)
	if err != nil {
		s.fallback(ctx, "list_all_claims", err)
		return s.local.ListAllClaims(ctx), nil
	}
	return toDomainClaims(rows), nil
}

// SetClaimStatus settles a pending claim as collected or cancelled. Any party
// to the claim may do so; the listing keeps its claimed state either way.
func (s *service) SetClaimStatus(ctx context.Context, actor domain.Actor, id string, status enums.ClaimStatus) (domain.Claim, error) {
	if status != enums.ClaimStatusCollected && status != enums.ClaimStatusCancelled {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeValidation, "status must be collected or cancelled")
	}
	claim, err := s.loadClaim(ctx, id, false)
	if err != nil {
		return domain.Claim{}, err
	}
	if !s.canSeeClaim(ctx, actor, claim) {
		return domain.Claim{}, pkgerrors.New(pkgerrors.CodeForbidden, "claim belongs to another user")
	}
	if claim.Status != enums.ClaimStatusPending {
		return domain.Claim{}, claimSettled(claim.Status)
	}

	var updated domain.Claim
	if s.useLocal(id) {
		updated, err = s.local.UpdateClaimStatus(ctx, id, status)
		if err != nil {
			return domain.Claim{}, err
		}
	} else {
		var receivedAt *time.Time
		if status == enums.ClaimStatusCollected {
			at := s.now()
			receivedAt = &at
		}
		hostedID, _ := parseHostedID(id, "claim")
		started := time.Now()
		row, err := s.repo.UpdateClaimStatus(ctx, hostedID, status, receivedAt)
		s.observe("update_claim_status", started, err)
		if errors.Is(err, ErrClaimNotPending) {
			return domain.Claim{}, claimSettled("")
		}
		if err != nil {
			return domain.Claim{}, dependencyError(err, "could not update claim")
		}
		updated = toDomainClaim(*row)
		s.publish(events.ClaimsChanged, events.ActionUpdated, updated.ID, updated.ClaimedBy, updated.ListingID)
	}

	if actor.UserID != updated.ClaimedBy {
		kind, title := enums.NotificationTypeClaimApproved, "Claim approved"
		if status == enums.ClaimStatusCancelled {
			kind, title = enums.NotificationTypeClaimRejected, "Claim rejected"
		}
		s.notify(ctx, updated.ClaimedBy, kind, title, "Your claim was marked "+string(status)+".", updated.ListingID)
	}
	return updated, nil
}

func claimSettled(status enums.ClaimStatus) error {
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "claim is no longer pending")
	if status != "" {
		err = err.WithDetails(map[string]any{"status": status})
	}
	return err
}
