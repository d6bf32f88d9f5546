package crawler

import (
	"context"
	"time"
)

// PageStore is the persistent frontier and corpus.
type PageStore interface {
	// InsertUnvisited adds a new frontier row. It returns ErrDuplicateURL when
	// the URL is already known.
	InsertUnvisited(ctx context.Context, url string) (PageID, error)
	// LeaseNext atomically picks and leases one unvisited, unleased row.
	// ok is false when nothing is leasable.
	LeaseNext(ctx context.Context) (id PageID, url string, ok bool, err error)
	// MarkLeased leases a specific row, failing with ErrNotLeasable if it is
	// already leased or visited.
	MarkLeased(ctx context.Context, id PageID) error
	// Release clears the lease flag. It is idempotent.
	Release(ctx context.Context, id PageID) error
	RecordVisited(ctx context.Context, id PageID, content string, links []string) error
	IsFrontierEmpty(ctx context.Context) (bool, error)
	CountInboundLinks(ctx context.Context, id PageID) (int, error)
	Search(ctx context.Context, query string, limit int) ([]Page, error)
	Pages(ctx context.Context) ([]Page, error)
	Close() error
}

// Fetcher retrieves a URL and returns the raw response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Classifier turns a URL into a validated Document or a *FetchError.
type Classifier interface {
	Classify(ctx context.Context, url string) (Document, error)
}

// RetryPolicy decides whether and when to retry a failed fetch.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// IDGenerator produces crawl run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time for run timing.
type Clock interface {
	Now() time.Time
}
