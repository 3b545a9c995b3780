package database

import (
	"context"
	"fmt"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/seed"
	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/memory"
	"github.com/shiurfinder/shiurfinder/internal/store/mongo"
	"github.com/shiurfinder/shiurfinder/internal/store/postgres"
)

// Open connects the store selected by cfg.Driver. When the connection fails
// and cfg.Fallback is set, it logs the failure and returns a fresh memory
// store instead. Demo data is loaded into an empty store when
// cfg.SeedDemoData is set.
func Open(ctx context.Context, cfg config.StoreConfig, logger *logging.Logger) (store.Store, error) {
	s, err := connect(ctx, cfg)
	if err != nil {
		if !cfg.Fallback || cfg.Driver == config.StoreMemory {
			return nil, err
		}
		logger.Warn("database unavailable, running with in-memory store",
			"driver", cfg.Driver,
			"error", err.Error(),
		)
		s = memory.New()
	}

	logger.Info("store ready", "store", s.Name())

	if cfg.SeedDemoData {
		if err := seed.IfEmpty(ctx, s, logger); err != nil {
			// Missing demo data must not keep the server from starting.
			logger.Warn("failed to seed demo data", "error", err.Error())
		}
	}

	return s, nil
}

// Connect opens the configured store without fallback or seeding.
func Connect(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	return connect(ctx, cfg)
}

func connect(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ConnectTimeout)
	case config.StorePostgres:
		return connectPostgres(ctx, cfg)
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func connectPostgres(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	sqlDB, err := OpenPostgres(connectCtx, cfg.Postgres)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return postgres.New(NewBunDB(sqlDB)), nil
}
