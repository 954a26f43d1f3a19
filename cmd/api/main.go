package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/abundantshare/share-backend/api/controllers"
	"github.com/abundantshare/share-backend/api/middleware"
	"github.com/abundantshare/share-backend/api/routes"
	"github.com/abundantshare/share-backend/internal/admin"
	"github.com/abundantshare/share-backend/internal/auth"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/impact"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/internal/media"
	"github.com/abundantshare/share-backend/internal/notifications"
	"github.com/abundantshare/share-backend/internal/otp"
	"github.com/abundantshare/share-backend/internal/users"
	"github.com/abundantshare/share-backend/pkg/auth/session"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/kv"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/abundantshare/share-backend/pkg/migrate"
	"github.com/abundantshare/share-backend/pkg/pubsub"
	"github.com/abundantshare/share-backend/pkg/redis"
	"github.com/abundantshare/share-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error closing resources", errs)
		}
	}()

	pingers := map[string]controllers.Pinger{}

	var conn *gorm.DB
	if cfg.HostedConfigured() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbClient.Close)
		pingers["db"] = dbClient

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		conn = dbClient.DB()
	} else {
		logg.Warn(ctx, "no hosted database configured, serving from the local device store")
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)
		pingers["redis"] = redisClient
	}

	bus := events.NewBus(logg)
	if cfg.PubSub.Enabled(cfg.GCP) {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		closers = append(closers, psClient.Close)
		pingers["pubsub"] = psClient

		forwarder, err := events.NewForwarder(psClient.EventsPublisher(), logg)
		if err != nil {
			logg.Error(ctx, "failed to create event forwarder", err)
			os.Exit(1)
		}
		detach := forwarder.Attach(bus)
		closers = append(closers, func() error { detach(); return nil })
	}

	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)

	medium, err := kv.Open(cfg.LocalStore, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to open local store medium", err)
		os.Exit(1)
	}
	local, err := localstore.New(localstore.Params{
		KV:      medium,
		Bus:     bus,
		Logger:  logg,
		Metrics: storeMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create local store", err)
		os.Exit(1)
	}
	if cfg.App.IsDev() && cfg.FeatureFlags.AutoSeed && local.AutoSeed(ctx) {
		logg.Info(ctx, "local store auto-seeded")
	}

	var rateStore middleware.RateLimiterStore = middleware.NewMemoryRateStore(nil)
	if redisClient != nil {
		rateStore = redisClient
	}
	sessions, err := chooseSessions(cfg.HostedConfigured() && redisClient != nil, local.Sessions(), func() (session.Store, error) {
		return session.NewManager(redisClient, cfg.JWT)
	})
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(local, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	var (
		listingsRepo *listings.Repository
		usersRepo    *users.Repository
		impactRepo   *impact.Repository
	)
	if conn != nil {
		listingsRepo = listings.NewRepository(conn)
		usersRepo = users.NewRepository(conn)
		impactRepo = impact.NewRepository(conn)
	}

	listingsService, err := listings.NewService(listings.ServiceParams{
		Repo:     listingsRepo,
		Local:    local,
		Bus:      bus,
		Notifier: notificationsService,
		Logger:   logg,
		Metrics:  storeMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create listings service", err)
		os.Exit(1)
	}

	challenger, err := otp.New(otp.Params{
		Config: cfg.OTP,
		Hosted: conn != nil,
		DB:     conn,
		Local:  local,
		Sender: otp.LogSender{Logger: logg, Reveal: cfg.App.IsDev()},
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create otp provider", err)
		os.Exit(1)
	}

	authProvider, err := auth.NewProvider(auth.ProviderParams{
		Users:    usersRepo,
		Local:    local,
		Sessions: sessions,
		OTP:      challenger,
		Bus:      bus,
		App:      cfg.App,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		DevAuth:  cfg.DevAuth,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth provider", err)
		os.Exit(1)
	}

	impactService, err := impact.NewService(impact.ServiceParams{
		Repo:     impactRepo,
		Activity: listingsService,
		Logger:   logg,
		Metrics:  storeMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create impact service", err)
		os.Exit(1)
	}

	adminService, err := admin.NewService(admin.ServiceParams{
		Listings: listingsService,
		Users:    usersRepo,
		Local:    local,
		Bus:      bus,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create admin service", err)
		os.Exit(1)
	}

	var mediaService media.Service
	if cfg.Storage.Enabled() {
		gcsClient, err := gcs.NewClient(ctx, cfg.Storage, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		closers = append(closers, gcsClient.Close)
		pingers["gcs"] = gcsClient

		mediaService, err = media.NewService(media.ServiceParams{
			Signer:        gcsClient,
			Bucket:        gcsClient.DefaultBucket(),
			UploadTTL:     cfg.Storage.UploadURLExpiry,
			MaxBytes:      cfg.Storage.MaxImageBytes,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			Logger:        logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create media service", err)
			os.Exit(1)
		}
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"store_mode": string(listingsService.Mode()),
	})
	logg.Info(ctx, "starting api server")

	// No WriteTimeout: the events stream holds responses open.
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			Sessions:      sessions,
			RateStore:     rateStore,
			Pingers:       pingers,
			Auth:          authProvider,
			Listings:      listingsService,
			Notifications: notificationsService,
			Impact:        impactService,
			Admin:         adminService,
			Media:         mediaService,
			Bus:           bus,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}

// chooseSessions keeps local-mode sessions in dev_sessions_v1 even when Redis
// is reachable; only hosted mode uses the Redis manager.
func chooseSessions(hostedWithRedis bool, local session.Store, newManager func() (session.Store, error)) (session.Store, error) {
	if !hostedWithRedis {
		return local, nil
	}
	return newManager()
}
