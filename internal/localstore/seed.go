package localstore

import (
	"context"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/pkg/enums"
)

type sampleListing struct {
	id, donor, title, description, quantity, location string
	expiresIn, pickupFor                              time.Duration
}

var sampleListings = []sampleListing{
	{
		id: "local-sample-1", donor: "dev-user-id-1", title: "Apple Pack",
		description: "Fresh and natural apples.", quantity: "5 kg",
		location: "Sitra, Coimbatore", expiresIn: 4 * 24 * time.Hour, pickupFor: 6 * time.Hour,
	},
	{
		id: "local-sample-2", donor: "dev-user-id-1", title: "Chapathi Pack",
		description: "Homemade chapathis for immediate pickup.", quantity: "10 pcs",
		location: "Local Temple, Coimbatore", expiresIn: 12 * time.Hour, pickupFor: 3 * time.Hour,
	},
	{
		id: "local-sample-3", donor: "dev-user-id-2", title: "Idly Box",
		description: "Soft idlies prepared fresh this morning.", quantity: "20 pcs",
		location: "Market Street, Coimbatore", expiresIn: 6 * time.Hour, pickupFor: 4 * time.Hour,
	},
	{
		id: "local-sample-4", donor: "dev-user-id-3", title: "Biryani Tray",
		description: "Large biryani tray (vegetarian) ready for pickup.", quantity: "8 kg",
		location: "Community Hall, Coimbatore", expiresIn: 36 * time.Hour, pickupFor: 12 * time.Hour,
	},
}

// SampleListings builds the fixed sample set relative to now.
func SampleListings(now time.Time) []domain.FoodListing {
	out := make([]domain.FoodListing, 0, len(sampleListings))
	for _, s := range sampleListings {
		out = append(out, domain.FoodListing{
			ID:              s.id,
			DonorID:         s.donor,
			Title:           s.title,
			Description:     s.description,
			Quantity:        s.quantity,
			Category:        enums.FoodCategoryOther,
			ExpiryDate:      now.Add(s.expiresIn),
			PickupTimeStart: now,
			PickupTimeEnd:   now.Add(s.pickupFor),
			PickupLocation:  s.location,
			Status:          enums.ListingStatusAvailable,
			Images:          []string{},
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return out
}

// seedIfEmptyLocked returns the stored listings, writing the sample set first
// when the collection is empty. A failed read never seeds.
func (s *Store) seedIfEmptyLocked(ctx context.Context) ([]domain.FoodListing, error) {
	listings, err := s.readListings(ctx)
	if err != nil {
		return nil, err
	}
	if len(listings) > 0 {
		return listings, nil
	}
	sample := SampleListings(s.now())
	if err := s.save(ctx, KeyListings, sample); err != nil {
		return sample, nil
	}
	s.publish(events.ListingsChanged, events.ActionSeeded, "", "", "")
	return sample, nil
}

// AutoSeed runs the one-time development seed guarded by dev_autoseeded_v1.
// It reports whether the seed ran during this call.
func (s *Store) AutoSeed(ctx context.Context) bool {
	s.lock()
	defer s.unlock()

	var flag string
	if err := s.load(ctx, KeyAutoSeeded, &flag); err != nil || flag != "" {
		return false
	}
	if _, err := s.seedIfEmptyLocked(ctx); err != nil {
		return false
	}

	now := s.now()
	s.createListingLocked(ctx, domain.FoodListing{
		Title:           "Dev Auto-Seed: Fresh Snacks",
		Description:     "Auto-seeded listing to verify local mode.",
		Quantity:        "5 packs",
		DonorID:         DevDonorID,
		ExpiryDate:      now.Add(24 * time.Hour),
		PickupTimeStart: now,
		PickupTimeEnd:   now.Add(6 * time.Hour),
		PickupLocation:  "Dev Kitchen",
	})
	return s.save(ctx, KeyAutoSeeded, "1") == nil
}
