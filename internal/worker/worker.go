// Package worker implements the crawl loop that drains the page frontier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/linkextract"
	"github.com/JakeFAU/guugle/internal/metrics"
)

const (
	defaultIdleBackoff          = 100 * time.Millisecond
	defaultMaxConsecutiveErrors = 5
)

// Config controls Worker behavior.
type Config struct {
	// IdleBackoff is how long to sleep when the frontier is non-empty but
	// every unvisited page is leased by someone else.
	IdleBackoff time.Duration
	// MaxConsecutiveErrors stops the worker after this many failed iterations
	// in a row.
	MaxConsecutiveErrors int
}

// Worker leases frontier pages, classifies them and records the outcome.
type Worker struct {
	id         int
	store      crawler.PageStore
	classifier crawler.Classifier
	retry      crawler.RetryPolicy
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker. retry may be nil to disable retries.
func New(
	id int,
	store crawler.PageStore,
	classifier crawler.Classifier,
	retry crawler.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = defaultIdleBackoff
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:         id,
		store:      store,
		classifier: classifier,
		retry:      retry,
		cfg:        cfg,
		logger:     logger.Named("worker").With(zap.Int("worker_id", id)),
	}
}

// ID returns the worker's index within its pool.
func (w *Worker) ID() int {
	return w.id
}

// Run loops until the frontier is empty, the context is done, or too many
// consecutive iterations fail. Cancellation is a clean stop and returns nil.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("worker started")
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	consecutive := 0
	for {
		if ctx.Err() != nil {
			w.logger.Debug("worker canceled")
			return nil
		}

		done, err := w.step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			consecutive++
			w.logger.Error("crawl iteration failed", zap.Int("consecutive", consecutive), zap.Error(err))
			if consecutive >= w.cfg.MaxConsecutiveErrors {
				return fmt.Errorf("worker %d stopped after %d consecutive errors: %w", w.id, consecutive, err)
			}
			continue
		}
		consecutive = 0
		if done {
			w.logger.Debug("frontier empty, worker exiting")
			return nil
		}
	}
}

// step runs one iteration of the loop. done reports an empty frontier.
func (w *Worker) step(ctx context.Context) (bool, error) {
	empty, err := w.store.IsFrontierEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("check frontier: %w", err)
	}
	if empty {
		return true, nil
	}

	lease, ok, err := crawler.LeaseNext(ctx, w.store)
	if err != nil {
		metrics.ObserveLease("error")
		return false, err
	}
	if !ok {
		metrics.ObserveLease("empty")
		return false, sleep(ctx, w.cfg.IdleBackoff)
	}
	metrics.ObserveLease("acquired")
	return false, w.process(ctx, lease)
}

// process handles a single leased page. The lease is released on every path,
// including panics. A page whose unit of work fails without a classified
// outcome is recorded with the error sentinel so it is not leased again.
// Store writes run on a non-cancelable context: once a page is recorded its
// links always reach the frontier.
func (w *Worker) process(ctx context.Context, lease *crawler.Lease) (err error) {
	logger := w.logger.With(zap.Int64("page_id", int64(lease.ID())), zap.String("url", lease.URL()))
	storeCtx := context.WithoutCancel(ctx)
	recorded := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing page %d: %v", lease.ID(), r)
			logger.Error("recovered from panic", zap.Any("panic", r))
		}
		if err != nil && !recorded && ctx.Err() == nil {
			err = multierr.Append(err, w.recordUnprocessable(storeCtx, logger, lease, err))
		}
		if relErr := lease.Release(ctx); relErr != nil {
			logger.Error("lease release failed", zap.Error(relErr))
			err = multierr.Append(err, relErr)
		}
	}()

	doc, err := w.classify(ctx, logger, lease.URL())
	if err != nil {
		fetchErr, ok := crawler.AsFetchError(err)
		if !ok {
			return fmt.Errorf("classify %s: %w", lease.URL(), err)
		}
		if err := w.recordFailure(storeCtx, logger, lease, fetchErr); err != nil {
			return err
		}
		recorded = true
		return nil
	}

	links := linkextract.Extract(doc.Text)
	if err := w.store.RecordVisited(storeCtx, lease.ID(), doc.Text, links); err != nil {
		return fmt.Errorf("record page %d: %w", lease.ID(), err)
	}
	recorded = true
	metrics.ObservePage(lease.URL(), metrics.OutcomeHTML, len(doc.Text))

	added, dupes, err := w.enqueue(storeCtx, links)
	metrics.ObserveLinks(added, dupes)
	if err != nil {
		return err
	}
	logger.Debug("page recorded",
		zap.Int("links", len(links)),
		zap.Int("new_links", added),
		zap.Int("duplicate_links", dupes),
	)
	return nil
}

// recordUnprocessable stores the error sentinel for a page whose unit of work
// failed. It returns nil once the page is recorded.
func (w *Worker) recordUnprocessable(
	ctx context.Context,
	logger *zap.Logger,
	lease *crawler.Lease,
	cause error,
) error {
	if err := w.store.RecordVisited(ctx, lease.ID(), crawler.SentinelError, nil); err != nil {
		return fmt.Errorf("record unprocessable page %d: %w", lease.ID(), err)
	}
	metrics.ObservePage(lease.URL(), metrics.OutcomeUnprocessable, 0)
	logger.Warn("page recorded as error after failed unit of work", zap.NamedError("cause", cause))
	return nil
}

func (w *Worker) classify(ctx context.Context, logger *zap.Logger, url string) (crawler.Document, error) {
	for attempt := 0; ; attempt++ {
		doc, err := w.classifier.Classify(ctx, url)
		if err == nil {
			return doc, nil
		}
		if w.retry == nil || !w.retry.ShouldRetry(err, attempt) {
			return crawler.Document{}, err
		}
		delay := w.retry.Backoff(attempt)
		metrics.ObservePage(url, metrics.OutcomeRetried, 0)
		logger.Debug("retrying fetch",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return crawler.Document{}, err
		}
	}
}

// recordFailure stores the sentinel for a failed page so it is never retried.
func (w *Worker) recordFailure(
	ctx context.Context,
	logger *zap.Logger,
	lease *crawler.Lease,
	fetchErr *crawler.FetchError,
) error {
	if err := w.store.RecordVisited(ctx, lease.ID(), fetchErr.Kind.Sentinel(), nil); err != nil {
		return fmt.Errorf("record failed page %d: %w", lease.ID(), err)
	}
	metrics.ObservePage(lease.URL(), string(fetchErr.Kind), 0)
	logger.Info("page not indexable",
		zap.String("kind", string(fetchErr.Kind)),
		zap.Error(fetchErr),
	)
	return nil
}

// enqueue adds discovered links to the frontier. Already known URLs are skipped.
func (w *Worker) enqueue(ctx context.Context, links []string) (added, dupes int, err error) {
	for _, link := range links {
		if _, insErr := w.store.InsertUnvisited(ctx, link); insErr != nil {
			if errors.Is(insErr, crawler.ErrDuplicateURL) {
				dupes++
				continue
			}
			return added, dupes, fmt.Errorf("enqueue %s: %w", link, insErr)
		}
		added++
	}
	return added, dupes, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
