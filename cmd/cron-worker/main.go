package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/abundantshare/share-backend/internal/cron"
	"github.com/abundantshare/share-backend/internal/events"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/internal/localstore"
	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/instance"
	"github.com/abundantshare/share-backend/pkg/kv"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/abundantshare/share-backend/pkg/migrate"
	"github.com/abundantshare/share-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"instance": instance.GetID()},
	})

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

	var listingsRepo *listings.Repository
	if cfg.HostedConfigured() {
		dbClient, err := db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbClient.Close)

		if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
		listingsRepo = listings.NewRepository(dbClient.DB())
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)
	}

	bus := events.NewBus(logg)
	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)

	medium, err := kv.Open(cfg.LocalStore, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to open local store medium", err)
		os.Exit(1)
	}
	local, err := localstore.New(localstore.Params{KV: medium, Bus: bus, Logger: logg, Metrics: storeMetrics})
	if err != nil {
		logg.Error(context.Background(), "failed to create local store", err)
		os.Exit(1)
	}

	listingsService, err := listings.NewService(listings.ServiceParams{
		Repo:    listingsRepo,
		Local:   local,
		Bus:     bus,
		Logger:  logg,
		Metrics: storeMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create listings service", err)
		os.Exit(1)
	}

	// Several workers may share one Redis; without it only this process runs jobs.
	var lock cron.Lock = &cron.LocalLock{}
	if redisClient != nil {
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	expiryJob, err := cron.NewListingExpiryJob(cron.ListingExpiryJobParams{
		Expirer: listingsService,
		Logger:  logg,
		Metrics: cronMetrics,
		Batch:   cfg.Cron.SweepBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create listing expiry job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(expiryJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    registry,
		Lock:        lock,
		Metrics:     cronMetrics,
		Interval:    cfg.Cron.Interval,
		RunOnBootup: cfg.Cron.RunOnBootup,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"store_mode": string(listingsService.Mode()),
		"interval":   cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
