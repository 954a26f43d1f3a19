package impact

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubActivity struct {
	listings []domain.FoodListing
	claims   []domain.Claim
}

func (s stubActivity) ListDonorListings(context.Context, domain.Actor) ([]domain.FoodListing, error) {
	return s.listings, nil
}

func (s stubActivity) ListClaimsByUser(context.Context, domain.Actor) ([]domain.Claim, error) {
	return s.claims, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.UserImpact{}))
	return conn
}

func newService(t *testing.T, repo *Repository, reg prometheus.Registerer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo: repo,
		Activity: stubActivity{
			listings: []domain.FoodListing{{ID: "l1"}, {ID: "l2"}},
			claims:   []domain.Claim{{ID: "c1"}},
		},
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics: metrics.NewStoreMetrics(reg),
		Clock:   func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc
}

func TestGetComputesLocally(t *testing.T) {
	svc := newService(t, nil, nil)

	stats, err := svc.Get(context.Background(), domain.Actor{UserID: "local-user-1"})
	require.NoError(t, err)
	require.Equal(t, 2, stats.MealsDonated)
	require.Equal(t, 1, stats.MealsReceived)
	require.Zero(t, stats.FoodWastedKg)
	require.Equal(t, testNow, stats.UpdatedAt)
}

func TestGetCreatesHostedRowWhenAbsent(t *testing.T) {
	conn := openTestDB(t)
	svc := newService(t, NewRepository(conn), nil)
	userID := uuid.New()

	stats, err := svc.Get(context.Background(), domain.Actor{UserID: userID.String()})
	require.NoError(t, err)
	require.Zero(t, stats.MealsDonated)

	var count int64
	require.NoError(t, conn.Model(&models.UserImpact{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, conn.Model(&models.UserImpact{}).Where("user_id = ?", userID).Update("meals_donated", 7).Error)
	stats, err = svc.Get(context.Background(), domain.Actor{UserID: userID.String()})
	require.NoError(t, err)
	require.Equal(t, 7, stats.MealsDonated)
}

func TestGetFallsBackWhenHostedFails(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, conn.Migrator().DropTable(&models.UserImpact{}))
	reg := prometheus.NewRegistry()
	svc := newService(t, NewRepository(conn), reg)

	stats, err := svc.Get(context.Background(), domain.Actor{UserID: uuid.NewString()})
	require.NoError(t, err)
	require.Equal(t, 2, stats.MealsDonated)

	count, err := testutil.GatherAndCount(reg, "share_store_fallbacks_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGetLocalIDInHostedModeComputes(t *testing.T) {
	svc := newService(t, NewRepository(openTestDB(t)), nil)

	stats, err := svc.Get(context.Background(), domain.Actor{UserID: "dev-user-id-1"})
	require.NoError(t, err)
	require.Equal(t, 1, stats.MealsReceived)
}
