package crawler

import (
	"context"
	"fmt"
	"sync"
)

// Lease is exclusive ownership of one frontier page. The durable in_use flag
// is set before a Lease exists; Release clears it exactly once.
//
//	lease, ok, err := crawler.LeaseNext(ctx, store)
//	if err != nil || !ok { ... }
//	defer lease.Release(ctx)
type Lease struct {
	store PageStore
	id    PageID
	url   string

	once       sync.Once
	releaseErr error
}

// AcquireLease marks an already known page as leased.
func AcquireLease(ctx context.Context, store PageStore, id PageID, url string) (*Lease, error) {
	if err := store.MarkLeased(ctx, id); err != nil {
		return nil, fmt.Errorf("lease page %d: %w", id, err)
	}
	return &Lease{store: store, id: id, url: url}, nil
}

// LeaseNext leases the next available frontier page. ok is false when no page
// is currently leasable.
func LeaseNext(ctx context.Context, store PageStore) (*Lease, bool, error) {
	id, url, ok, err := store.LeaseNext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lease next page: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{store: store, id: id, url: url}, true, nil
}

// ID returns the leased page id.
func (l *Lease) ID() PageID { return l.id }

// URL returns the leased page URL.
func (l *Lease) URL() string { return l.url }

// Release clears the lease. Only the first call touches the store; later
// calls return the first result. Cancellation of ctx does not prevent the
// write.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		if err := l.store.Release(context.WithoutCancel(ctx), l.id); err != nil {
			l.releaseErr = fmt.Errorf("release page %d: %w", l.id, err)
		}
	})
	return l.releaseErr
}
