package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhoneOTP stores the keyed hash of a pending phone verification code.
type PhoneOTP struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Phone     string    `gorm:"type:text;not null;uniqueIndex"`
	CodeHash  string    `gorm:"column:code_hash;type:text;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Attempts  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PhoneOTP) TableName() string { return "phone_otps" }

func (o *PhoneOTP) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
