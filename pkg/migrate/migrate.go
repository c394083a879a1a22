package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/packfinderz-shopper/pkg/config"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded migration files rooted at the migrations dir.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Up applies every pending migration against the client's database.
func Up(ctx context.Context, client *db.Client) error {
	provider, err := newProvider(client)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func Down(ctx context.Context, client *db.Client) error {
	provider, err := newProvider(client)
	if err != nil {
		return err
	}
	if _, err := provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// UpTo applies pending migrations up to and including version.
func UpTo(ctx context.Context, client *db.Client, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	provider, err := newProvider(client)
	if err != nil {
		return err
	}
	if _, err := provider.UpTo(ctx, target); err != nil {
		return fmt.Errorf("goose up-to %d: %w", target, err)
	}
	return nil
}

// Status reports every embedded migration and whether it has been applied.
func Status(ctx context.Context, client *db.Client) ([]*goose.MigrationStatus, error) {
	provider, err := newProvider(client)
	if err != nil {
		return nil, err
	}
	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// MaybeRun executes migrations at boot when auto-migrate is enabled.
func MaybeRun(ctx context.Context, cfg config.DBConfig, logg *logger.Logger, client *db.Client) error {
	if !cfg.AutoMigrate {
		return nil
	}

	ctx = logg.WithField(ctx, "driver", cfg.Driver)
	logg.Info(ctx, "running goose migrations")

	if err := Up(ctx, client); err != nil {
		return err
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}

func newProvider(client *db.Client) (*goose.Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	fsys := Migrations()
	if err := Validate(fsys); err != nil {
		return nil, err
	}

	dialect, err := dialectFor(client.Driver())
	if err != nil {
		return nil, err
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("building goose provider: %w", err)
	}
	return provider, nil
}

func dialectFor(driver string) (goose.Dialect, error) {
	switch driver {
	case config.DBDriverSQLite:
		return goose.DialectSQLite3, nil
	case config.DBDriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migration dialect for driver %q", driver)
	}
}
