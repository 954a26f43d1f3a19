package models

import (
	"time"

	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveClaimIndex allows a single non-cancelled claim per listing.
const ActiveClaimIndex = "ux_claims_active_listing"

// Claim is a recipient's request against a listing.
type Claim struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ListingID         uuid.UUID         `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:ux_claims_active_listing,where:status <> 'cancelled'"`
	ClaimedBy         uuid.UUID         `gorm:"column:claimed_by;type:uuid;not null;index"`
	QuantityRequested int               `gorm:"column:quantity_requested;not null"`
	Status            enums.ClaimStatus `gorm:"type:text;not null"`
	ClaimedAt         time.Time         `gorm:"column:claimed_at;not null"`
	ReceivedAt        *time.Time        `gorm:"column:received_at"`

	Listing *FoodListing `gorm:"foreignKey:ListingID"`
}

func (Claim) TableName() string { return "claims" }

func (c *Claim) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
