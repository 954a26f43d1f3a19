package impact

import (
	"context"
	"time"

	"github.com/abundantshare/share-backend/internal/repo"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads the per-user user_impact counters.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindOrCreate returns the user's row, inserting a zeroed one when absent.
func (r *Repository) FindOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.UserImpact, error) {
	row := models.UserImpact{UserID: userID, UpdatedAt: now}
	err := r.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	var stored models.UserImpact
	if err := r.DB(ctx).Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
