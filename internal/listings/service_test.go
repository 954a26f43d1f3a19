package listings

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/kv"
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

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type notice struct {
	userID string
	kind   enums.NotificationType
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(_ context.Context, userID string, kind enums.NotificationType, _, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{userID: userID, kind: kind})
}

type fixture struct {
	svc      Service
	local    *localstore.Store
	conn     *gorm.DB
	notifier *recordingNotifier
	registry *prometheus.Registry
}

func newLocalStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.New(localstore.Params{
		KV:     kv.NewMemory(),
		Logger: testLogger(),
		Clock:  func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return store
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func newFixture(t *testing.T, hosted bool) fixture {
	t.Helper()
	f := fixture{
		local:    newLocalStore(t),
		notifier: &recordingNotifier{},
		registry: prometheus.NewRegistry(),
	}
	params := ServiceParams{
		Local:    f.local,
		Notifier: f.notifier,
		Logger:   testLogger(),
		Metrics:  metrics.NewStoreMetrics(f.registry),
		Clock:    func() time.Time { return testNow },
	}
	if hosted {
		f.conn = openTestDB(t)
		params.Repo = NewRepository(f.conn)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func donor() domain.Actor {
	return domain.Actor{UserID: uuid.NewString(), Role: enums.ProfileRoleUser}
}

func sampleInput(title string) domain.FoodListing {
	return domain.FoodListing{
		Title:           title,
		Quantity:        "3 trays",
		Category:        enums.FoodCategoryPrepared,
		ExpiryDate:      testNow.Add(6 * time.Hour),
		PickupTimeStart: testNow,
		PickupTimeEnd:   testNow.Add(2 * time.Hour),
		PickupLocation:  "Hall B",
	}
}

func TestNewServiceSelectsModeOnce(t *testing.T) {
	require.Equal(t, ModeLocal, newFixture(t, false).svc.Mode())
	require.Equal(t, ModeHosted, newFixture(t, true).svc.Mode())

	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

func TestLocalModeClaimSampleScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	available, err := f.svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 4)
	for _, l := range available {
		require.Equal(t, enums.ListingStatusAvailable, l.Status)
	}

	userA := domain.Actor{UserID: "user-A", Role: enums.ProfileRoleUser}
	_, err = f.svc.CreateClaim(ctx, userA, "local-sample-1", 1)
	require.NoError(t, err)

	listing, err := f.svc.GetListing(ctx, "local-sample-1")
	require.NoError(t, err)
	require.Equal(t, enums.ListingStatusClaimed, listing.Status)

	claims, err := f.svc.ListClaimsByUser(ctx, userA)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.Equal(t, "Apple Pack", claims[0].Listing.Title)

	require.Len(t, f.notifier.notices, 1)
	require.Equal(t, "dev-user-id-1", f.notifier.notices[0].userID)
	require.Equal(t, enums.NotificationTypeClaimCreated, f.notifier.notices[0].kind)

	_, err = f.svc.CreateClaim(ctx, domain.Actor{UserID: "user-B"}, "local-sample-1", 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCannotClaimOwnListing(t *testing.T) {
	for _, hosted := range []bool{false, true} {
		f := newFixture(t, hosted)
		ctx := context.Background()
		owner := donor()
		listing, err := f.svc.CreateListing(ctx, owner, sampleInput("Rice"))
		require.NoError(t, err)

		_, err = f.svc.CreateClaim(ctx, owner, listing.ID, 1)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "hosted=%v err=%v", hosted, err)
	}
}

func TestUpdateRoundTripKeepsOtherFields(t *testing.T) {
	for _, hosted := range []bool{false, true} {
		f := newFixture(t, hosted)
		ctx := context.Background()
		owner := donor()
		created, err := f.svc.CreateListing(ctx, owner, sampleInput("X"))
		require.NoError(t, err)

		title := "Y"
		updated, err := f.svc.UpdateListing(ctx, owner, created.ID, domain.ListingPatch{Title: &title})
		require.NoError(t, err)
		require.Equal(t, "Y", updated.Title)
		require.Equal(t, created.Quantity, updated.Quantity)
		require.Equal(t, created.PickupLocation, updated.PickupLocation)
		require.True(t, created.ExpiryDate.Equal(updated.ExpiryDate))
		require.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	}
}

func TestOnlyOwnerOrAdminMayChangeListing(t *testing.T) {
	for _, hosted := range []bool{false, true} {
		f := newFixture(t, hosted)
		ctx := context.Background()
		owner := donor()
		listing, err := f.svc.CreateListing(ctx, owner, sampleInput("Soup"))
		require.NoError(t, err)

		stranger := donor()
		title := "mine now"
		_, err = f.svc.UpdateListing(ctx, stranger, listing.ID, domain.ListingPatch{Title: &title})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
		require.True(t, pkgerrors.IsCode(f.svc.DeleteListing(ctx, stranger, listing.ID), pkgerrors.CodeForbidden))

		admin := domain.Actor{UserID: uuid.NewString(), Role: enums.ProfileRoleAdmin}
		require.NoError(t, f.svc.DeleteListing(ctx, admin, listing.ID))
		_, err = f.svc.GetListing(ctx, listing.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	}
}

func TestCompleteListing(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := donor()
	listing, err := f.svc.CreateListing(ctx, owner, sampleInput("Bread"))
	require.NoError(t, err)

	done, err := f.svc.CompleteListing(ctx, owner, listing.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ListingStatusCompleted, done.Status)

	_, err = f.svc.CompleteListing(ctx, owner, listing.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestHostedClaimFlow(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := donor()
	recipient := donor()
	listing, err := f.svc.CreateListing(ctx, owner, sampleInput("Dal"))
	require.NoError(t, err)
	require.False(t, domain.IsLocalID(listing.ID))

	claim, err := f.svc.CreateClaim(ctx, recipient, listing.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, claim.QuantityRequested)
	require.NotNil(t, claim.Listing)
	require.Equal(t, "Dal", claim.Listing.Title)

	var received models.UserImpact
	require.NoError(t, f.conn.First(&received, "user_id = ?", uuid.MustParse(recipient.UserID)).Error)
	require.Equal(t, 1, received.MealsReceived)
	var donated models.UserImpact
	require.NoError(t, f.conn.First(&donated, "user_id = ?", uuid.MustParse(owner.UserID)).Error)
	require.Equal(t, 1, donated.MealsDonated)

	stored, err := f.svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ListingStatusClaimed, stored.Status)
	require.Equal(t, recipient.UserID, stored.ClaimedBy)

	incoming, err := f.svc.ListClaimsForDonor(ctx, owner)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	_, err = f.svc.GetClaim(ctx, donor(), claim.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	settled, err := f.svc.SetClaimStatus(ctx, owner, claim.ID, enums.ClaimStatusCollected)
	require.NoError(t, err)
	require.Equal(t, enums.ClaimStatusCollected, settled.Status)
	require.NotNil(t, settled.ReceivedAt)

	_, err = f.svc.SetClaimStatus(ctx, owner, claim.ID, enums.ClaimStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	after, err := f.svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ListingStatusClaimed, after.Status)

	kinds := []enums.NotificationType{}
	for _, n := range f.notifier.notices {
		kinds = append(kinds, n.kind)
	}
	require.Equal(t, []enums.NotificationType{enums.NotificationTypeClaimCreated, enums.NotificationTypeClaimApproved}, kinds)
}

func TestSetClaimStatusRejectsPending(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.SetClaimStatus(context.Background(), donor(), "claim-1", enums.ClaimStatusPending)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHostedReadsFallBackToLocal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.conn.Migrator().DropTable(&models.FoodListing{}))

	available, err := f.svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 4)
	series, err := testutil.GatherAndCount(f.registry, "share_store_fallbacks_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)

	owner := donor()
	created, err := f.svc.CreateListing(ctx, owner, sampleInput("Offline soup"))
	require.NoError(t, err)
	require.True(t, domain.IsLocalID(created.ID))

	got, err := f.svc.GetListing(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Offline soup", got.Title)
}

func TestHostedDestructiveFailuresSurface(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := donor()
	listing, err := f.svc.CreateListing(ctx, owner, sampleInput("Idly"))
	require.NoError(t, err)
	require.NoError(t, f.conn.Migrator().DropTable(&models.FoodListing{}))

	title := "changed"
	_, err = f.svc.UpdateListing(ctx, owner, listing.ID, domain.ListingPatch{Title: &title})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	require.True(t, pkgerrors.IsCode(f.svc.DeleteListing(ctx, owner, listing.ID), pkgerrors.CodeDependency))
	require.Empty(t, f.local.ListAllListings(ctx))
}

func TestDonorListingsMergeLocalRecords(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := donor()

	hosted, err := f.svc.CreateListing(ctx, owner, sampleInput("Hosted"))
	require.NoError(t, err)
	local := f.local.CreateListing(ctx, domain.FoodListing{Title: "Local", DonorID: owner.UserID})
	f.local.CreateListing(ctx, domain.FoodListing{Title: "Someone else"})

	mine, err := f.svc.ListDonorListings(ctx, owner)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, l := range mine {
		ids[l.ID] = true
	}
	require.Len(t, mine, 2)
	require.True(t, ids[hosted.ID])
	require.True(t, ids[local.ID])
}

func TestMergeByIDPrefersHosted(t *testing.T) {
	hosted := []domain.FoodListing{{ID: "a", Title: "hosted", CreatedAt: testNow}}
	local := []domain.FoodListing{
		{ID: "a", Title: "local", CreatedAt: testNow.Add(time.Hour)},
		{ID: "b", Title: "local only", CreatedAt: testNow.Add(time.Minute)},
	}
	merged := mergeByID(hosted, local, listingID, listingCreated)
	require.Len(t, merged, 2)
	require.Equal(t, "b", merged[0].ID)
	require.Equal(t, "hosted", merged[1].Title)
}

func TestLocalIDsRouteToLocalStoreInHostedMode(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	available, err := f.svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Empty(t, available)

	f.local.ListAvailableListings(ctx)
	listing, err := f.svc.GetListing(ctx, "local-sample-2")
	require.NoError(t, err)
	require.Equal(t, "Chapathi Pack", listing.Title)
}

func TestExpireListingsSweepsBothStores(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := donor()
	input := sampleInput("stale")
	input.ExpiryDate = testNow.Add(-time.Hour)
	_, err := f.svc.CreateListing(ctx, owner, input)
	require.NoError(t, err)
	f.local.CreateListing(ctx, domain.FoodListing{Title: "stale local", ExpiryDate: testNow.Add(-time.Minute)})

	n, err := f.svc.ExpireListings(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
