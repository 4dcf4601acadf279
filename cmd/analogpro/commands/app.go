package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/1v1expert/AnalogPro/config"
	"github.com/1v1expert/AnalogPro/internal/domain"
	"github.com/1v1expert/AnalogPro/internal/infrastructure/cache"
	"github.com/1v1expert/AnalogPro/internal/infrastructure/metrics"
	"github.com/1v1expert/AnalogPro/internal/infrastructure/storage"
	"github.com/1v1expert/AnalogPro/internal/usecase"
)

// app is the wired object graph shared by every command
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	catalog  domain.Catalog
	registry *prometheus.Registry
	analogs  *usecase.AnalogService
	checks   *usecase.HealthCheckService
	close    func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if databaseDriver != "" {
		cfg.Database.Driver = databaseDriver
	}
	if databasePath != "" {
		cfg.Database.Path = databasePath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := config.SetupLogger(cfg.Log)

	a := &app{cfg: cfg, logger: logger, close: func() error { return nil }}
	switch cfg.Database.Driver {
	case "memory":
		a.catalog = storage.NewMemoryStore()
	case "sqlite":
		store, err := storage.NewSQLiteStore(storage.SQLiteConfig{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			BusyTimeout:     cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		a.catalog = store
		a.close = store.Close
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	schemaCache, err := cache.NewMemoryCache(cfg.Cache.Size)
	if err != nil {
		return nil, err
	}
	store := cache.NewCachedStore(a.catalog, schemaCache, cfg.Cache.TTL)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(a.registry)
	metrics.RegisterCache(a.registry, schemaCache.Stats)

	a.analogs = usecase.NewAnalogService(store, m, logger)
	a.checks = usecase.NewHealthCheckService(store, a.analogs, m, logger, usecase.HealthCheckConfig{
		Workers: cfg.HealthCheck.Workers,
		Rate:    cfg.HealthCheck.Rate,
		Burst:   cfg.HealthCheck.Burst,
	})

	logger.Debug().
		Str("driver", cfg.Database.Driver).
		Str("path", cfg.Database.Path).
		Int("cache_size", cfg.Cache.Size).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("application wired")
	return a, nil
}
