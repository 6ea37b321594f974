// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/config"
	"github.com/hamed0406/uptimesli/internal/repo"
	"github.com/hamed0406/uptimesli/internal/repo/bolt"
	"github.com/hamed0406/uptimesli/internal/repo/memory"
	pg "github.com/hamed0406/uptimesli/internal/repo/postgres"
	"github.com/hamed0406/uptimesli/internal/repo/sqlite"
)

func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	var (
		s   repo.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		s = memory.New()
	case config.DriverPostgres:
		s, err = openPostgres(ctx, cfg.DatabaseURL, log)
	case config.DriverBolt:
		s, err = openBolt(cfg.StorePath)
	case config.DriverSQLite:
		s, err = openSQLite(ctx, cfg.StorePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	log.Info("store_opened", zap.String("driver", cfg.StoreDriver))
	return s, nil
}

// typed constructors return concrete pointers; keep nil pointers out of the interface
func openPostgres(ctx context.Context, dsn string, log *zap.Logger) (repo.Store, error) {
	s, err := pg.New(ctx, dsn, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBolt(path string) (repo.Store, error) {
	s, err := bolt.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, path string) (repo.Store, error) {
	s, err := sqlite.New(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
