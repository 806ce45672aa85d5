// Package app wires configuration into the running components shared by the
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pauljones0/gapfinder/internal/cache"
	"github.com/pauljones0/gapfinder/internal/config"
	"github.com/pauljones0/gapfinder/internal/dataset"
	"github.com/pauljones0/gapfinder/internal/delivery"
	"github.com/pauljones0/gapfinder/internal/index"
	"github.com/pauljones0/gapfinder/internal/processor"
	"github.com/pauljones0/gapfinder/internal/search"
	"github.com/pauljones0/gapfinder/internal/storage"
	"github.com/pauljones0/gapfinder/internal/store"
)

type App struct {
	Config    *config.Config
	Cache     *cache.Manager
	Store     *store.Store
	Engine    *search.Engine
	Refresher *processor.Refresher
}

// IndexOptions turns the configured tuning into index options.
func IndexOptions(cfg *config.Config) index.Options {
	opts := index.DefaultOptions()
	if cfg.Tuning.Threshold > 0 {
		opts.Threshold = cfg.Tuning.Threshold
	}
	for k, v := range cfg.Tuning.Weights {
		opts.Weights[k] = v
	}
	return opts
}

// OpenBackend opens the configured durable store. A store that cannot be
// opened is replaced by an in-memory one so the caller keeps working.
func OpenBackend(ctx context.Context, cfg *config.Config) cache.Backend {
	var (
		b   cache.Backend
		err error
	)
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return storage.NewMemory()
	case config.BackendFirestore:
		b, err = storage.NewFirestore(ctx, cfg.ProjectID, cfg.FirestoreCollectionPrefix)
	default:
		b, err = storage.OpenSQLite(cfg.CacheDBPath)
	}
	if err != nil {
		slog.Warn("Failed to open durable cache, continuing in memory", "backend", cfg.CacheBackend, "error", err)
		return storage.NewMemory()
	}
	return b
}

// New builds every component. online seeds the cache manager's connectivity state.
func New(ctx context.Context, cfg *config.Config, online bool) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	backend := OpenBackend(ctx, cfg)
	deliverer := delivery.New(cfg.SyncEndpointURL, cfg.SyncRatePerSecond, cfg.SyncRateBurst)

	mgr, err := cache.New(ctx, backend, deliverer, cache.Options{
		HotCacheSize:   cfg.HotCacheSize,
		StorageLimitMB: cfg.StorageLimitMB,
		Online:         online,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to create cache manager: %w", err)
	}

	s := store.New(IndexOptions(cfg))
	return &App{
		Config:    cfg,
		Cache:     mgr,
		Store:     s,
		Engine:    search.NewEngine(s),
		Refresher: processor.New(dataset.New(cfg), mgr, s, cfg),
	}, nil
}

// Close waits for background flushes and closes the durable store.
func (a *App) Close() error {
	return a.Cache.Close()
}
