// Package impact serves the dashboard counters for the signed-in user.
package impact

import (
	"context"
	"fmt"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Stats are the impact counters shown to a user.
type Stats struct {
	MealsDonated  int       `json:"meals_donated"`
	MealsReceived int       `json:"meals_received"`
	FoodWastedKg  float64   `json:"food_wasted_kg"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Activity is the listing/claim surface used to compute stats locally.
type Activity interface {
	ListDonorListings(ctx context.Context, actor domain.Actor) ([]domain.FoodListing, error)
	ListClaimsByUser(ctx context.Context, actor domain.Actor) ([]domain.Claim, error)
}

type Service interface {
	Get(ctx context.Context, actor domain.Actor) (Stats, error)
}

// ServiceParams wires the service. A nil Repo computes every request locally.
type ServiceParams struct {
	Repo     *Repository
	Activity Activity
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
	Clock    func() time.Time
}

type service struct {
	repo     *Repository
	activity Activity
	logg     *logger.Logger
	metrics  *metrics.StoreMetrics
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Activity == nil {
		return nil, fmt.Errorf("activity source required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     p.Repo,
		activity: p.Activity,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

// Get reads the stored counters in hosted mode and falls back to counting the
// user's listings and claims whenever the stored row cannot be reached.
func (s *service) Get(ctx context.Context, actor domain.Actor) (Stats, error) {
	if s.repo != nil {
		if id, err := uuid.Parse(actor.UserID); err == nil {
			started := time.Now()
			row, err := s.repo.FindOrCreate(ctx, id, s.now())
			s.metrics.Observe(metrics.StoreHosted, "impact.get", started, err)
			if err == nil {
				return Stats{
					MealsDonated:  row.MealsDonated,
					MealsReceived: row.MealsReceived,
					FoodWastedKg:  row.FoodWastedKg,
					UpdatedAt:     row.UpdatedAt.UTC(),
				}, nil
			}
			s.metrics.IncFallback("impact.get")
			ctx = s.logg.WithUserID(ctx, actor.UserID)
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "impact.hosted_fallback")
		}
	}
	return s.compute(ctx, actor)
}

func (s *service) compute(ctx context.Context, actor domain.Actor) (Stats, error) {
	listings, err := s.activity.ListDonorListings(ctx, actor)
	if err != nil {
		return Stats{}, err
	}
	claims, err := s.activity.ListClaimsByUser(ctx, actor)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		MealsDonated:  len(listings),
		MealsReceived: len(claims),
		UpdatedAt:     s.now(),
	}, nil
}
