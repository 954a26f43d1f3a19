package listings

import (
	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/users"
	"github.com/abundantshare/share-backend/pkg/db/models"
	dbtypes "github.com/abundantshare/share-backend/pkg/db/types"
	"github.com/google/uuid"
)

func toDomainListing(m models.FoodListing) domain.FoodListing {
	l := domain.FoodListing{
		ID:              m.ID.String(),
		DonorID:         m.DonorID.String(),
		Title:           m.Title,
		Description:     m.Description,
		Quantity:        m.Quantity,
		Category:        m.Category,
		ExpiryDate:      m.ExpiryDate.UTC(),
		PickupTimeStart: m.PickupTimeStart.UTC(),
		PickupTimeEnd:   m.PickupTimeEnd.UTC(),
		PickupLocation:  m.PickupLocation,
		Status:          m.Status,
		Images:          append([]string{}, m.Images...),
		ClaimedAt:       m.ClaimedAt,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.ClaimedBy != nil {
		l.ClaimedBy = m.ClaimedBy.String()
	}
	return l
}

func toDomainListings(rows []models.FoodListing) []domain.FoodListing {
	out := make([]domain.FoodListing, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainListing(row))
	}
	return out
}

// toListingModel copies the editable fields of l onto a model. Ids are
// parsed by the caller.
func toListingModel(l domain.FoodListing, donorID uuid.UUID) *models.FoodListing {
	return &models.FoodListing{
		DonorID:         donorID,
		Title:           l.Title,
		Description:     l.Description,
		Quantity:        l.Quantity,
		Category:        l.Category,
		ExpiryDate:      l.ExpiryDate.UTC(),
		PickupTimeStart: l.PickupTimeStart.UTC(),
		PickupTimeEnd:   l.PickupTimeEnd.UTC(),
		PickupLocation:  l.PickupLocation,
		Status:          l.Status,
		Images:          dbtypes.StringList(append([]string{}, l.Images...)),
	}
}

// applyToModel writes the merged domain state back onto the loaded row.
func applyToModel(m *models.FoodListing, l domain.FoodListing) {
	m.Title = l.Title
	m.Description = l.Description
	m.Quantity = l.Quantity
	m.Category = l.Category
	m.ExpiryDate = l.ExpiryDate.UTC()
	m.PickupTimeStart = l.PickupTimeStart.UTC()
	m.PickupTimeEnd = l.PickupTimeEnd.UTC()
	m.PickupLocation = l.PickupLocation
	m.Status = l.Status
	m.Images = dbtypes.StringList(append([]string{}, l.Images...))
	m.UpdatedAt = l.UpdatedAt
}

func toDomainClaim(m models.Claim) domain.Claim {
	c := domain.Claim{
		ID:                m.ID.String(),
		ListingID:         m.ListingID.String(),
		ClaimedBy:         m.ClaimedBy.String(),
		QuantityRequested: m.QuantityRequested,
		Status:            m.Status,
		ClaimedAt:         m.ClaimedAt.UTC(),
		ReceivedAt:        m.ReceivedAt,
	}
	if m.Listing != nil {
		var donor *domain.Profile
		if m.Listing.Donor != nil {
			p := users.ToDomainProfile(*m.Listing.Donor)
			donor = &p
		}
		c.Listing = domain.NewListingSnapshot(toDomainListing(*m.Listing), donor)
	}
	return c
}

func toDomainClaims(rows []models.Claim) []domain.Claim {
	out := make([]domain.Claim, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainClaim(row))
	}
	return out
}
