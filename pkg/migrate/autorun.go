package migrate

import (
	"context"
	"fmt"

	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/db"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&models.Item{},
		&models.Modifier{},
		&models.Sale{},
		&models.SaleLine{},
		&models.OutboxEvent{},
	}
}

// MaybeRunDev migrates automatically when running in dev with the feature flag
// on. SQLite databases are created from the gorm models since the goose files
// use Postgres-only types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": "sqlite"})
		logg.Info(ctx, "auto-migrating sqlite schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": "postgres"})
	logg.Info(ctx, "applying embedded goose migrations")
	if err := Run(ctx, sqlDB, Source(DefaultDir), "up", nil); err != nil {
		return err
	}
	logg.Info(ctx, "goose migrations applied")
	return nil
}
