// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/api"
	"github.com/JakeFAU/guugle/internal/classifier"
	"github.com/JakeFAU/guugle/internal/clock/system"
	"github.com/JakeFAU/guugle/internal/config"
	"github.com/JakeFAU/guugle/internal/coordinator"
	"github.com/JakeFAU/guugle/internal/crawler"
	collyfetcher "github.com/JakeFAU/guugle/internal/fetcher/colly"
	"github.com/JakeFAU/guugle/internal/id/uuid"
	"github.com/JakeFAU/guugle/internal/pagestore"
	"github.com/JakeFAU/guugle/internal/policy/ratelimit"
	"github.com/JakeFAU/guugle/internal/ranker"
	"github.com/JakeFAU/guugle/internal/worker"
)

// App holds the shared, long-lived services for one CLI invocation. The page
// store handle is opened once and injected into every component.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  crawler.PageStore
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetStore exposes the page store.
func (a *App) GetStore() crawler.PageStore {
	return a.store
}

// NewApp opens the configured page store. It fails fast with a wrapped
// crawler.ErrStorageFault when the store cannot be opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("opening page store", zap.String("backend", backendName(cfg.Store.Path)))
	store, err := pagestore.Open(ctx, cfg.Store.Path, pagestore.PostgresConfig{
		MaxConns:        cfg.Store.MaxConns,
		MaxConnLifetime: cfg.Store.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open page store: %w", err)
	}
	return NewAppWithStore(cfg, logger, store), nil
}

// NewAppWithStore builds an App around an already opened store (primarily for testing).
func NewAppWithStore(cfg config.Config, logger *zap.Logger, store crawler.PageStore) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, store: store}
}

// Coordinator assembles the crawl pipeline: colly fetcher, per-host limiter,
// classifier, retry policy and worker pool.
func (a *App) Coordinator() *coordinator.Coordinator {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.HTTP.Timeout,
		MaxBodySize:   a.cfg.HTTP.MaxBodyBytes,
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.HTTP.RateLimitPerHost,
		DefaultBurst: a.cfg.HTTP.RateLimitBurst,
	})
	retry := crawler.NewExponentialRetryPolicy(
		a.cfg.Crawler.MaxRetries,
		a.cfg.Crawler.RetryBaseDelay,
		a.cfg.Crawler.RetryMaxDelay,
	)
	return coordinator.New(
		a.store,
		classifier.New(fetcher, limiter, a.logger),
		retry,
		uuid.New(),
		coordinator.Config{
			Workers: a.cfg.Crawler.Workers,
			Clock:   system.New(),
			Worker: worker.Config{
				IdleBackoff:          a.cfg.Crawler.IdleBackoff,
				MaxConsecutiveErrors: a.cfg.Crawler.MaxConsecutiveErrors,
			},
		},
		a.logger,
	)
}

// Ranker returns a ranker over the page store.
func (a *App) Ranker() *ranker.Ranker {
	return ranker.New(a.store, a.logger)
}

// APIServer returns the search HTTP server.
func (a *App) APIServer() *api.Server {
	return api.NewServer(a.Ranker(), uuid.New(), api.Config{
		APIKey:         a.cfg.APIKey(),
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxAmount:      a.cfg.Server.MaxAmount,
	}, a.logger)
}

// Close gracefully shuts down all services in the App container.
// It is called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("error closing page store", zap.Error(err))
		}
	}
	// Syncing stderr/stdout fails on some platforms; nothing useful can be done.
	_ = a.logger.Sync()
}

func backendName(path string) string {
	if pagestore.IsPostgresDSN(path) {
		return "postgres"
	}
	return "sqlite"
}
