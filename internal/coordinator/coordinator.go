// Package coordinator seeds the frontier and runs a pool of crawl workers
// until the frontier drains.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/clock/system"
	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/worker"
)

const defaultWorkers = 5

// Config controls the worker pool.
type Config struct {
	Workers int
	Worker  worker.Config
	// Clock times the run. Nil uses the system clock.
	Clock crawler.Clock
}

// Summary describes a finished crawl run.
type Summary struct {
	RunID    string
	Seeded   int
	Workers  int
	Duration time.Duration
}

// Coordinator fans crawl work out to a fixed pool of workers sharing one store.
type Coordinator struct {
	store      crawler.PageStore
	classifier crawler.Classifier
	retry      crawler.RetryPolicy
	ids        crawler.IDGenerator
	cfg        Config
	logger     *zap.Logger
}

// New creates a Coordinator.
func New(
	store crawler.PageStore,
	classifier crawler.Classifier,
	retry crawler.RetryPolicy,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:      store,
		classifier: classifier,
		retry:      retry,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
	}
}

// Seed inserts the given URLs into the frontier. URLs that are already known
// are skipped. It returns the number of newly inserted seeds.
func (c *Coordinator) Seed(ctx context.Context, seeds []string) (int, error) {
	inserted := 0
	for _, seed := range seeds {
		if seed == "" {
			continue
		}
		if _, err := c.store.InsertUnvisited(ctx, seed); err != nil {
			if errors.Is(err, crawler.ErrDuplicateURL) {
				c.logger.Debug("seed already known", zap.String("url", seed))
				continue
			}
			return inserted, fmt.Errorf("seed %s: %w", seed, err)
		}
		inserted++
	}
	return inserted, nil
}

// Run seeds the frontier, starts the workers and blocks until every worker
// has stopped. Worker failures do not stop their siblings; all of them are
// combined into the returned error.
func (c *Coordinator) Run(ctx context.Context, seeds []string) (Summary, error) {
	start := c.cfg.Clock.Now()
	runID, err := c.newRunID()
	if err != nil {
		return Summary{}, err
	}
	logger := c.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID, Workers: c.cfg.Workers}

	seeded, err := c.Seed(ctx, seeds)
	summary.Seeded = seeded
	if err != nil {
		return summary, err
	}
	logger.Info("crawl started", zap.Int("seeds", seeded), zap.Int("workers", c.cfg.Workers))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for i := 0; i < c.cfg.Workers; i++ {
		w := worker.New(i, c.store, c.classifier, c.retry, c.cfg.Worker, logger)
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			if err := c.runWorker(ctx, wk); err != nil {
				logger.Error("worker failed", zap.Int("worker_id", wk.ID()), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	summary.Duration = c.cfg.Clock.Now().Sub(start)
	logger.Info("crawl finished",
		zap.Duration("duration", summary.Duration),
		zap.Int("failed_workers", len(multierr.Errors(errs))),
		zap.Bool("canceled", ctx.Err() != nil),
	)
	return summary, errs
}

func (c *Coordinator) runWorker(ctx context.Context, w *worker.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", w.ID(), r)
		}
	}()
	return w.Run(ctx)
}

func (c *Coordinator) newRunID() (string, error) {
	if c.ids == nil {
		return "", nil
	}
	id, err := c.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}
