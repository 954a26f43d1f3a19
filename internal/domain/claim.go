package domain

import (
	"time"

	"github.com/abundantshare/share-backend/pkg/enums"
)

// Claim is a recipient's request against a listing.
type Claim struct {
	ID                string            `json:"id"`
	ListingID         string            `json:"listing_id"`
	ClaimedBy         string            `json:"claimed_by"`
	QuantityRequested int               `json:"quantity_requested"`
	Status            enums.ClaimStatus `json:"status"`
	ClaimedAt         time.Time         `json:"claimed_at"`
	ReceivedAt        *time.Time        `json:"received_at,omitempty"`
	Listing           *ListingSnapshot  `json:"food_listings,omitempty"`
}

// ListingSnapshot is the denormalised listing plus donor profile captured at
// claim time so a claim renders without a join.
type ListingSnapshot struct {
	FoodListing
	Donor *Profile `json:"profiles"`
}

// NewListingSnapshot copies the listing and the optional donor profile.
func NewListingSnapshot(listing FoodListing, donor *Profile) *ListingSnapshot {
	snap := &ListingSnapshot{FoodListing: listing}
	snap.Images = append([]string(nil), listing.Images...)
	if donor != nil {
		copied := *donor
		snap.Donor = &copied
	}
	return snap
}
