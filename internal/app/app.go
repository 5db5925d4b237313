// Package app assembles the storage backend both binaries run on.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/clock"
	"github.com/Simplici0/cabinetry/internal/config"
	"github.com/Simplici0/cabinetry/internal/db"
	"github.com/Simplici0/cabinetry/internal/migrations"
	"github.com/Simplici0/cabinetry/internal/seed"
	"github.com/Simplici0/cabinetry/internal/store"
)

const redisPingTimeout = 3 * time.Second

// App is an opened backend plus the resources behind it.
type App struct {
	Backend store.Backend

	closers []func() error
}

// Open builds the backend selected by cfg. SQL backends are migrated (always
// for sqlite, in development for postgres) and seeded before use. A configured
// Redis that does not answer is skipped with a warning.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{}

	var backend store.Backend
	switch cfg.StorageBackend {
	case config.BackendFile:
		fs, err := store.NewFileStore(cfg.DataDir, clock.System{}, log)
		if err != nil {
			return nil, err
		}
		log.Info("using file storage", zap.String("dir", cfg.DataDir))
		backend = fs
	default:
		database, err := OpenDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, database.Close)

		if cfg.DBDriver == config.DriverSQLite || cfg.IsDev() {
			if err := migrations.Up(database.DB, cfg.DBDriver); err != nil {
				_ = a.Close()
				return nil, err
			}
		}

		stats, err := seed.Run(ctx, database)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("seed pricing configuration: %w", err)
		}
		log.Info("startup seed finished",
			zap.Int("inserts", stats.Inserts),
			zap.Int("updates", stats.Updates))

		backend = store.NewSQLStore(database, clock.System{}, log)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			log.Warn("redis unavailable, running without configuration cache",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rdb.Close()
		} else {
			a.closers = append(a.closers, rdb.Close)
			backend = store.NewCachedBackend(backend, rdb, cfg.CacheTTL, log)
			log.Info("configuration cache enabled",
				zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	a.Backend = backend
	return a, nil
}

// OpenDB opens the configured SQL database without migrating it.
func OpenDB(ctx context.Context, cfg config.Config, log *zap.Logger) (*sqlx.DB, error) {
	if cfg.DBDriver == config.DriverPostgres {
		return db.OpenPostgres(ctx, cfg.DSN(), cfg.DBConnectTimeout, log)
	}
	return db.Open(cfg.DSN())
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
