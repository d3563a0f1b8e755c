// Package app wires configuration into a ready engine. Both binaries
// build their runtime through Build so they never drift apart.
package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medicare-refprice/core/engine"
	"medicare-refprice/core/fee"
	"medicare-refprice/core/refdata"
	"medicare-refprice/db"
	"medicare-refprice/db/cache"
	"medicare-refprice/db/ingestion"
	"medicare-refprice/internal/config"
	apperrors "medicare-refprice/internal/errors"
	"medicare-refprice/internal/metrics"
)

// App is a constructed runtime. Close releases the store's connections.
type App struct {
	Engine     *engine.Engine
	Metrics    *metrics.Metrics
	Store      refdata.Store
	Validation *ingestion.ValidationResult

	closers []func()
}

// Close releases everything Build opened, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build opens the configured store and constructs the engine over it
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	geography, err := refdata.LoadGeography()
	if err != nil {
		return nil, err
	}
	fallback, err := refdata.LoadEDFallback()
	if err != nil {
		return nil, err
	}

	var store refdata.Store
	switch cfg.Store.Backend {
	case "postgres":
		database, err := db.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, apperrors.StoreUnavailable(err)
		}
		a.closers = append(a.closers, database.Close)
		if cfg.Store.RunMigrations {
			if err := database.RunMigrations(cfg.Store.DatabaseURL); err != nil {
				a.Close()
				return nil, apperrors.Internal("running migrations", err)
			}
		}
		store = db.NewStore(database)
		logger.Info("using postgres reference store")

	case "memory", "":
		loader := ingestion.NewLoader(geography, logger.Named("ingestion"))
		tables, result, err := loader.LoadDir(cfg.Store.DataDir, cfg.Store.MPFSFeed)
		if err != nil {
			return nil, err
		}
		if !result.IsValid {
			return nil, apperrors.Newf(apperrors.TypeParsing, "reference data in %s failed governance", cfg.Store.DataDir).
				WithContext("errors", result.Errors)
		}
		a.Validation = result
		store = refdata.NewMemoryStore(tables)
		logger.Info("using in-memory reference store",
			zap.String("data_dir", cfg.Store.DataDir),
			zap.String("checksum", result.Checksum),
		)

	default:
		return nil, apperrors.Config("unknown store.backend "+cfg.Store.Backend, nil)
	}

	if cfg.Cache.Enabled {
		c := cache.New(store, cfg.Cache.RedisAddr, cfg.Cache.TTL())
		a.closers = append(a.closers, func() { _ = c.Close() })
		store = c
		logger.Info("geography cache enabled", zap.String("redis", cfg.Cache.RedisAddr))
	}
	a.Store = store

	cf := decimal.Zero
	if cfg.Resolver.ConversionFactor != "" {
		cf, err = decimal.NewFromString(cfg.Resolver.ConversionFactor)
		if err != nil {
			a.Close()
			return nil, apperrors.Config("resolver.conversion_factor is not a number", err)
		}
	}

	a.Metrics = metrics.New()
	a.Metrics.WatchDatasets(store)

	a.Engine = engine.New(store, engine.Config{
		Workers:        cfg.Resolver.Workers,
		LookupTimeout:  cfg.Resolver.LookupTimeout(),
		LookupRetries:  cfg.Resolver.LookupRetries,
		RequestTimeout: cfg.Resolver.RequestTimeout(),
		QPStatus:       cfg.Resolver.QPStatus,
	}, engine.Options{
		Geography:  geography,
		Fallback:   fallback,
		Calculator: fee.NewCalculator(cf),
		Metrics:    a.Metrics,
		Logger:     logger.Named("engine"),
	})
	return a, nil
}
