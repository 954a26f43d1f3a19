package models

import (
	"time"

	"github.com/google/uuid"
)

// UserImpact holds the aggregate impact counters shown on the dashboard.
type UserImpact struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	MealsDonated  int       `gorm:"column:meals_donated;not null"`
	MealsReceived int       `gorm:"column:meals_received;not null"`
	FoodWastedKg  float64   `gorm:"column:food_wasted_kg;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserImpact) TableName() string { return "user_impact" }
