// Package app wires configuration, storage, the provider client and the
// report service together for the command-line entry points.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ramonehamilton/GCG-Companion/internal/config"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/metrics"
	"github.com/ramonehamilton/GCG-Companion/internal/provider"
	"github.com/ramonehamilton/GCG-Companion/internal/render"
	"github.com/ramonehamilton/GCG-Companion/internal/report"
	"github.com/ramonehamilton/GCG-Companion/internal/snapshot"
	"github.com/ramonehamilton/GCG-Companion/internal/storage"
	"github.com/ramonehamilton/GCG-Companion/internal/storage/repository"
	"github.com/ramonehamilton/GCG-Companion/internal/version"
)

// App holds the long-lived services of one process.
type App struct {
	Config   *config.Config
	Provider *provider.Client
	Store    *snapshot.Store
	Metrics  *metrics.ReportMetrics
	Tips     *report.Tips
	Service  *report.Service

	log       *logger.Logger
	retention *storage.RetentionScheduler
	closers   []func() error
}

// New builds the application from cfg. Replies receives every message the
// report service sends to players. Close must be called to release the
// snapshot backend.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, replies report.ReplySink) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.NewReportMetrics(),
		Tips:    report.NewTips(cfg.Report.Tips),
		log:     log,
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// Durations were checked by Validate.
	cardTTL, _ := cfg.GetCardTTL()
	a.Store = snapshot.NewStore(cache,
		snapshot.WithKeyPrefix(cfg.Snapshot.KeyPrefix),
		snapshot.WithCardTTL(cardTTL),
		snapshot.WithLogger(log),
	)

	timeout, _ := cfg.GetProviderTimeout()
	opts := provider.DefaultClientOptions(cfg.Provider.BaseURL)
	opts.RateLimit = rate.Limit(cfg.Provider.RateLimitPerSec)
	opts.Timeout = timeout
	opts.UserAgent = cfg.Provider.UserAgent
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}
	opts.Logger = log
	a.Provider = provider.NewClient(opts)

	renderer, err := render.New(cfg.Report.Renderer)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	recall, _ := cfg.GetStatusRecall()
	a.Service, err = report.NewService(report.Options{
		Provider:     a.Provider,
		Snapshots:    a.Store,
		Renderer:     renderer,
		Replies:      replies,
		Tips:         a.Tips,
		Metrics:      a.Metrics,
		Logger:       log,
		ReplayLimit:  cfg.Report.ReplayLimit,
		StatusRecall: recall,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

// openCache opens the configured snapshot backend.
func (a *App) openCache(ctx context.Context) (snapshot.Cache, error) {
	cfg := a.Config
	switch cfg.Snapshot.Backend {
	case "memory":
		a.log.Warn("using in-memory snapshots; they are lost on restart")
		return snapshot.NewMemoryCache(), nil

	case "redis":
		cache, err := snapshot.NewRedisCache(ctx, snapshot.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.Close)
		a.log.Info("snapshot backend ready", "backend", "redis", "addr", cfg.Redis.Addr)
		return cache, nil

	case "sqlite":
		dbConfig := storage.DefaultConfig(cfg.Storage.Path)
		dbConfig.AutoMigrate = true
		db, err := storage.Open(dbConfig)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		repo := repository.NewCacheRepository(db.Conn())
		interval, _ := cfg.GetRetentionInterval()
		a.retention = storage.NewRetentionScheduler(repo, &storage.RetentionConfig{
			Interval:         interval,
			StartImmediately: true,
			OnSweep: func(purged int64, err error) {
				if err != nil {
					a.log.Warn("snapshot retention sweep failed", "error", err)
					return
				}
				if purged > 0 {
					a.log.Info("purged expired snapshots", "count", purged)
				}
			},
		})
		if err := a.retention.Start(); err != nil {
			return nil, err
		}
		a.log.Info("snapshot backend ready", "backend", "sqlite", "path", cfg.Storage.Path)
		return snapshot.NewSQLiteCache(repo), nil

	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

// ApplyConfig applies the settings that can change without a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Tips.Replace(cfg.Report.Tips)
	a.log.Info("configuration reloaded", "tips", len(cfg.Report.Tips))
}

// Retention returns the SQLite retention scheduler, or nil for other backends.
func (a *App) Retention() *storage.RetentionScheduler {
	return a.retention
}

// Close stops background work and releases the snapshot backend.
func (a *App) Close() error {
	var errs []error
	if a.retention != nil && a.retention.IsRunning() {
		if err := a.retention.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
