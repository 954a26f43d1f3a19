// Package domain holds the entity model shared by the hosted and local stores.
package domain

import (
	"strings"
	"time"

	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
)

// FoodListing is a donor-posted surplus-food offer.
type FoodListing struct {
	ID              string              `json:"id"`
	DonorID         string              `json:"donor_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Quantity        string              `json:"quantity"`
	Category        enums.FoodCategory  `json:"category"`
	ExpiryDate      time.Time           `json:"expiry_date"`
	PickupTimeStart time.Time           `json:"pickup_time_start"`
	PickupTimeEnd   time.Time           `json:"pickup_time_end"`
	PickupLocation  string              `json:"pickup_location"`
	Status          enums.ListingStatus `json:"status"`
	Images          []string            `json:"images"`
	ClaimedBy       string              `json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time          `json:"claimed_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsAvailableAt reports whether the listing can be browsed at the given instant.
// A listing expiring exactly at now is still available.
func (l FoodListing) IsAvailableAt(now time.Time) bool {
	return l.Status == enums.ListingStatusAvailable && !l.ExpiryDate.Before(now)
}

// ListingPatch carries a partial update; nil fields are left untouched.
type ListingPatch struct {
	Title           *string              `json:"title,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Quantity        *string              `json:"quantity,omitempty"`
	Category        *enums.FoodCategory  `json:"category,omitempty"`
	ExpiryDate      *time.Time           `json:"expiry_date,omitempty"`
	PickupTimeStart *time.Time           `json:"pickup_time_start,omitempty"`
	PickupTimeEnd   *time.Time           `json:"pickup_time_end,omitempty"`
	PickupLocation  *string              `json:"pickup_location,omitempty"`
	Status          *enums.ListingStatus `json:"status,omitempty"`
	Images          *[]string            `json:"images,omitempty"`
}

// Apply merges the patch into a copy of the listing.
func (p ListingPatch) Apply(l FoodListing) FoodListing {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.Category != nil {
		l.Category = *p.Category
	}
	if p.ExpiryDate != nil {
		l.ExpiryDate = *p.ExpiryDate
	}
	if p.PickupTimeStart != nil {
		l.PickupTimeStart = *p.PickupTimeStart
	}
	if p.PickupTimeEnd != nil {
		l.PickupTimeEnd = *p.PickupTimeEnd
	}
	if p.PickupLocation != nil {
		l.PickupLocation = *p.PickupLocation
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Images != nil {
		l.Images = append([]string(nil), (*p.Images)...)
	}
	return l
}

// IsEmpty reports whether the patch changes nothing.
func (p ListingPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Quantity == nil && p.Category == nil &&
		p.ExpiryDate == nil && p.PickupTimeStart == nil && p.PickupTimeEnd == nil &&
		p.PickupLocation == nil && p.Status == nil && p.Images == nil
}

// IsLocalID reports whether an id can only have been minted by the Local Device
// Store. Hosted rows always carry UUIDs.
func IsLocalID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err != nil
}
