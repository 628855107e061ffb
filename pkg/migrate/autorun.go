package migrate

import (
	"context"
	"fmt"
	"os"

	"github.com/angelmondragon/salespulse/pkg/config"
	"github.com/angelmondragon/salespulse/pkg/db"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

// MaybeRunDev brings the local analytics schema up to date before a dev run
// against Postgres. Other engines and environments are left untouched.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return nil
	}
	if !cfg.App.IsDev() || !cfg.DB.AutoMigrate || client.Dialect() != Dialect {
		return nil
	}

	versions, err := ValidateDir(DefaultDir)
	if err != nil {
		return fmt.Errorf("validating migrations: %w", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"dir": DefaultDir, "known": len(versions)})
	logg.Info(ctx, "applying analytics migrations")

	applied, err := Up(ctx, sqlDB, os.DirFS(DefaultDir))
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "applied", applied), "analytics migrations up to date")
	return nil
}
