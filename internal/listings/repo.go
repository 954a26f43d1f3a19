package listings

import (
	"context"
	"errors"
	"time"

	"github.com/abundantshare/share-backend/internal/repo"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrListingUnavailable is returned when a claim targets a listing that is no
// longer available or already carries an active claim.
var ErrListingUnavailable = errors.New("listing is not available")

// Repository persists listings and claims in the hosted relational store.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// CreateListing inserts the listing and credits the donor's meals_donated.
func (r *Repository) CreateListing(ctx context.Context, listing *models.FoodListing) error {
	return r.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(listing).Error; err != nil {
			return err
		}
		return bumpImpact(tx, listing.DonorID, "meals_donated", listing.CreatedAt)
	})
}

// bumpImpact adds one to a user_impact counter, inserting the row when absent.
func bumpImpact(tx *gorm.DB, userID uuid.UUID, column string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := map[string]any{
		"user_id":        userID,
		"meals_donated":  0,
		"meals_received": 0,
		"food_wasted_kg": 0,
		"updated_at":     at,
	}
	row[column] = 1
	return tx.Model(&models.UserImpact{}).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				column:       gorm.Expr(column + " + 1"),
				"updated_at": at,
			}),
		}).
		Create(row).Error
}

// FindListing loads a listing without associations.
func (r *Repository) FindListing(ctx context.Context, id uuid.UUID) (*models.FoodListing, error) {
	var listing models.FoodListing
	if err := r.DB(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// SaveListing writes every column of the listing.
func (r *Repository) SaveListing(ctx context.Context, listing *models.FoodListing) error {
	return r.DB(ctx).Save(listing).Error
}

// DeleteListing removes the listing; claims cascade. Returns the affected row count.
func (r *Repository) DeleteListing(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Delete(&models.FoodListing{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ListAvailable returns available listings expiring at or after now, newest first.
func (r *Repository) ListAvailable(ctx context.Context, now time.Time) ([]models.FoodListing, error) {
	var rows []models.FoodListing
	err := r.DB(ctx).
		Where("status = ? AND expiry_date >= ?", enums.ListingStatusAvailable, now).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]models.FoodListing, error) {
	var rows []models.FoodListing
	err := r.DB(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.FoodListing, error) {
	var rows []models.FoodListing
	err := r.DB(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// ExpireBefore marks up to limit available listings whose expiry passed as expired.
func (r *Repository) ExpireBefore(ctx context.Context, now time.Time, limit int) (int64, error) {
	ids := r.DB(ctx).
		Model(&models.FoodListing{}).
		Select("id").
		Where("status = ? AND expiry_date < ?", enums.ListingStatusAvailable, now)
	if limit > 0 {
		ids = ids.Limit(limit)
	}
	res := r.DB(ctx).
		Model(&models.FoodListing{}).
		Where("id IN (?)", ids).
		Updates(map[string]any{
			"status":     enums.ListingStatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// CreateClaim inserts the claim, flips the listing to claimed and credits the
// claimant's meals_received in one transaction. The conditional update and the active-claim index both map to
// ErrListingUnavailable.
func (r *Repository) CreateClaim(ctx context.Context, claim *models.Claim) error {
	return r.Tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.FoodListing{}).
			Where("id = ? AND status = ?", claim.ListingID, enums.ListingStatusAvailable).
			Updates(map[string]any{
				"status":     enums.ListingStatusClaimed,
				"claimed_by": claim.ClaimedBy,
				"claimed_at": claim.ClaimedAt,
				"updated_at": claim.ClaimedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrListingUnavailable
		}
		if err := tx.Create(claim).Error; err != nil {
			if db.IsUniqueViolation(err, models.ActiveClaimIndex) {
				return ErrListingUnavailable
			}
			return err
		}
		return bumpImpact(tx, claim.ClaimedBy, "meals_received", claim.ClaimedAt)
	})
}

func (r *Repository) withClaimAssociations(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Preload("Listing").Preload("Listing.Donor")
}

// FindClaim loads a claim with its listing and the donor profile.
func (r *Repository) FindClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	if err := r.withClaimAssociations(ctx).First(&claim, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *Repository) ListClaimsByUser(ctx context.Context, userID uuid.UUID) ([]models.Claim, error) {
	var rows []models.Claim
	err := r.withClaimAssociations(ctx).
		Where("claimed_by = ?", userID).
		Order("claimed_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListClaimsForDonor returns claims made against any listing the donor owns.
func (r *Repository) ListClaimsForDonor(ctx context.Context, donorID uuid.UUID) ([]models.Claim, error) {
	var rows []models.Claim
	err := r.withClaimAssociations(ctx).
		Joins("JOIN food_listings ON food_listings.id = claims.listing_id").
		Where("food_listings.donor_id = ?", donorID).
		Order("claims.claimed_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListAllClaims(ctx context.Context) ([]models.Claim, error) {
	var rows []models.Claim
	err := r.withClaimAssociations(ctx).Order("claimed_at DESC").Find(&rows).Error
	return rows, err
}

// UpdateClaimStatus sets the status of a pending claim and returns the updated
// row. A claim that is no longer pending yields ErrClaimNotPending.
func (r *Repository) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status enums.ClaimStatus, receivedAt *time.Time) (*models.Claim, error) {
	var claim models.Claim
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(lockingClause(tx)...).First(&claim, "id = ?", id).Error; err != nil {
			return err
		}
		if claim.Status != enums.ClaimStatusPending {
			return ErrClaimNotPending
		}
		claim.Status = status
		claim.ReceivedAt = receivedAt
		return tx.Model(&models.Claim{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": status, "received_at": receivedAt}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindClaim(ctx, id)
}

// ErrClaimNotPending is returned when a status change targets a settled claim.
var ErrClaimNotPending = errors.New("claim is not pending")

// lockingClause takes a row lock on postgres; sqlite serialises writers itself.
func lockingClause(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "postgres" {
		return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
	}
	return nil
}
