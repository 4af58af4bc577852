package database

import (
	"context"
	"fmt"

	"bistro/auth/internal/config"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/repository/postgres"
	"bistro/auth/internal/repository/sqlite"
)

// Open builds the persistence backend named by cfg.Driver. It is called once
// at process start; the caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	var store repository.Store

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = postgres.NewStore(pool)
	case config.DriverSQLite:
		db, err := NewSQLiteDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = sqlite.NewStore(db)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return store, nil
}
