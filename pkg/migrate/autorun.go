package migrate

import (
	"context"
	"fmt"

	"github.com/abundantshare/share-backend/pkg/config"
	"github.com/abundantshare/share-backend/pkg/db"
	"github.com/abundantshare/share-backend/pkg/db/models"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// MaybeRunDev brings the hosted schema up to date at startup. A sqlite
// database is always auto-migrated from the models since the goose files are
// postgres dialect. Postgres is migrated only in dev with the auto-migrate flag.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.DB.Driver == config.DBDriverSQLite {
		ctx = logg.WithField(ctx, "driver", config.DBDriverSQLite)
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		logg.Info(ctx, "migrate.sqlite_automigrated")
		return nil
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.dev_autorun_complete")
	return nil
}
