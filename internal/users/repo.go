package users

import (
	"context"
	"strings"
	"time"

	"github.com/abundantshare/share-backend/internal/repo"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes hosted credential and profile persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a credential row and its profile in one transaction.
func (r *Repository) Create(ctx context.Context, email, passwordHash string, profile *models.Profile) (*models.User, error) {
	user := &models.User{Email: normalizeEmail(email), PasswordHash: passwordHash}
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("lower(email) = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash swaps the stored hash, used when hash parameters change.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

// Delete removes the credential row and the profile.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var affected int64
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Profile{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (r *Repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return r.DB(ctx).Create(profile).Error
}

// SaveProfile writes every column of the profile.
func (r *Repository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	return r.DB(ctx).Save(profile).Error
}

// ListProfiles returns every profile, newest first.
func (r *Repository) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var rows []models.Profile
	err := r.DB(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *Repository) SetRole(ctx context.Context, userID uuid.UUID, role enums.ProfileRole) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
