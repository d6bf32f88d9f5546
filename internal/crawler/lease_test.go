package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLeaseNextReturnsHandle(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("LeaseNext", mock.Anything).Return(PageID(7), "help.ch", true, nil).Once()
	store.On("Release", mock.Anything, PageID(7)).Return(nil).Once()

	lease, ok, err := LeaseNext(context.Background(), store)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, PageID(7), lease.ID())
	require.Equal(t, "help.ch", lease.URL())

	require.NoError(t, lease.Release(context.Background()))
	store.AssertExpectations(t)
}

func TestLeaseNextNothingAvailable(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("LeaseNext", mock.Anything).Return(PageID(0), "", false, nil).Once()

	lease, ok, err := LeaseNext(context.Background(), store)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, lease)
	store.AssertExpectations(t)
}

func TestLeaseNextWrapsStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	store := &MockPageStore{}
	store.On("LeaseNext", mock.Anything).Return(PageID(0), "", false, boom).Once()

	_, _, err := LeaseNext(context.Background(), store)
	require.ErrorIs(t, err, boom)
}

func TestAcquireLeasePropagatesStoreFailure(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("MarkLeased", mock.Anything, PageID(3)).Return(ErrNotLeasable).Once()

	lease, err := AcquireLease(context.Background(), store, 3, "p.ch")
	require.ErrorIs(t, err, ErrNotLeasable)
	require.Nil(t, lease)
	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestLeaseReleaseRunsOnce(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("MarkLeased", mock.Anything, PageID(1)).Return(nil).Once()
	store.On("Release", mock.Anything, PageID(1)).Return(nil).Once()

	lease, err := AcquireLease(context.Background(), store, 1, "test.ch")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lease.Release(context.Background())
		}()
	}
	wg.Wait()

	store.AssertNumberOfCalls(t, "Release", 1)
}

func TestLeaseReleaseSurvivesCanceledContext(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("MarkLeased", mock.Anything, PageID(2)).Return(nil).Once()
	store.On("Release", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), PageID(2)).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	lease, err := AcquireLease(ctx, store, 2, "help.ch")
	require.NoError(t, err)
	cancel()

	require.NoError(t, lease.Release(ctx))
	store.AssertExpectations(t)
}

func TestLeaseReleaseRemembersError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	store := &MockPageStore{}
	store.On("MarkLeased", mock.Anything, PageID(4)).Return(nil).Once()
	store.On("Release", mock.Anything, PageID(4)).Return(boom).Once()

	lease, err := AcquireLease(context.Background(), store, 4, "ep.ch")
	require.NoError(t, err)

	require.ErrorIs(t, lease.Release(context.Background()), boom)
	require.ErrorIs(t, lease.Release(context.Background()), boom)
	store.AssertNumberOfCalls(t, "Release", 1)
}

func TestLeaseReleasedOnPanic(t *testing.T) {
	t.Parallel()

	store := &MockPageStore{}
	store.On("LeaseNext", mock.Anything).Return(PageID(5), "lp.ch", true, nil).Once()
	store.On("Release", mock.Anything, PageID(5)).Return(nil).Once()

	func() {
		defer func() { _ = recover() }()
		lease, ok, err := LeaseNext(context.Background(), store)
		require.NoError(t, err)
		require.True(t, ok)
		defer lease.Release(context.Background()) //nolint:errcheck
		panic("unit of work blew up")
	}()

	store.AssertExpectations(t)
}
