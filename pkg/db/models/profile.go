package models

import (
	"time"

	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the one-per-user public record.
type Profile struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	FullName         string            `gorm:"column:full_name;type:text;not null"`
	Role             enums.ProfileRole `gorm:"type:text;not null"`
	OrganizationName *string           `gorm:"column:organization_name;type:text"`
	Phone            *string           `gorm:"type:text"`
	PhoneVerified    bool              `gorm:"column:phone_verified;not null"`
	Address          *string           `gorm:"type:text"`
	City             *string           `gorm:"type:text"`
	State            *string           `gorm:"type:text"`
	PostalCode       *string           `gorm:"column:postal_code;type:text"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
