package otp

import (
	"context"

	"github.com/abundantshare/share-backend/internal/repo"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists pending codes in phone_otps, one row per phone.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Upsert replaces any pending code for the phone.
func (r *Repository) Upsert(ctx context.Context, row *models.PhoneOTP) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "attempts", "created_at"}),
	}).Create(row).Error
}

func (r *Repository) Find(ctx context.Context, phone string) (*models.PhoneOTP, error) {
	var row models.PhoneOTP
	if err := r.DB(ctx).First(&row, "phone = ?", phone).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) IncrementAttempts(ctx context.Context, phone string) error {
	return r.DB(ctx).
		Model(&models.PhoneOTP{}).
		Where("phone = ?", phone).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *Repository) Delete(ctx context.Context, phone string) error {
	return r.DB(ctx).Delete(&models.PhoneOTP{}, "phone = ?", phone).Error
}
