package models

import (
	"time"

	dbtypes "github.com/abundantshare/share-backend/pkg/db/types"
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FoodListing is a donor-posted surplus-food offer.
type FoodListing struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	DonorID         uuid.UUID           `gorm:"column:donor_id;type:uuid;not null;index"`
	Title           string              `gorm:"type:text;not null"`
	Description     string              `gorm:"type:text;not null"`
	Quantity        string              `gorm:"type:text;not null"`
	Category        enums.FoodCategory  `gorm:"type:text;not null"`
	ExpiryDate      time.Time           `gorm:"column:expiry_date;not null"`
	PickupTimeStart time.Time           `gorm:"column:pickup_time_start;not null"`
	PickupTimeEnd   time.Time           `gorm:"column:pickup_time_end;not null"`
	PickupLocation  string              `gorm:"column:pickup_location;type:text;not null"`
	Status          enums.ListingStatus `gorm:"type:text;not null;index"`
	Images          dbtypes.StringList  `gorm:"not null"`
	ClaimedBy       *uuid.UUID          `gorm:"column:claimed_by;type:uuid"`
	ClaimedAt       *time.Time          `gorm:"column:claimed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Donor *Profile `gorm:"foreignKey:DonorID;references:UserID"`
}

func (FoodListing) TableName() string { return "food_listings" }

func (l *FoodListing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	if l.Images == nil {
		l.Images = dbtypes.StringList{}
	}
	return nil
}
