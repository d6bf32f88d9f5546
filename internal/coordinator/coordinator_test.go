package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/classifier"
	"github.com/JakeFAU/guugle/internal/crawler"
	collyfetcher "github.com/JakeFAU/guugle/internal/fetcher/colly"
	"github.com/JakeFAU/guugle/internal/id/uuid"
	"github.com/JakeFAU/guugle/internal/pagestore"
	"github.com/JakeFAU/guugle/internal/worker"
)

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func newSQLiteStore(t *testing.T) *pagestore.SQLiteStore {
	t.Helper()
	store, err := pagestore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "crawl.db3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<a href="%[1]s/team">team crystal</a>
<a href="%[1]s/logo.png">logo</a>
<a href="%[1]s/gone">gone</a>
<a href="/relative">relative</a>
</body></html>`, base)
	})
	mux.HandleFunc("/team", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<!doctype html><p>back <a href="%s/">home</a></p>`, base)
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	ts := httptest.NewServer(mux)
	base = ts.URL
	t.Cleanup(ts.Close)
	return ts
}

func TestCoordinatorCrawlsSiteToCompletion(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	store := newSQLiteStore(t)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	cls := classifier.New(fetcher, nil, zap.NewNop())
	retry := crawler.NewExponentialRetryPolicy(1, time.Millisecond, 2*time.Millisecond)

	coord := New(store, cls, retry, uuid.New(), Config{
		Workers: 3,
		Worker:  worker.Config{IdleBackoff: 5 * time.Millisecond},
	}, zap.NewNop())

	summary, err := coord.Run(context.Background(), []string{ts.URL + "/"})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Seeded)
	assert.Equal(t, 3, summary.Workers)

	pages, err := store.Pages(context.Background())
	require.NoError(t, err)
	byURL := make(map[string]crawler.Page, len(pages))
	for _, p := range pages {
		assert.True(t, p.Visited, "page %s not visited", p.URL)
		assert.False(t, p.InUse, "page %s still leased", p.URL)
		byURL[p.URL] = p
	}
	require.Len(t, byURL, 5)

	home := byURL[ts.URL+"/"]
	assert.Contains(t, home.ContentText(), "team crystal")
	assert.Equal(t, []string{ts.URL + "/team", ts.URL + "/logo.png", ts.URL + "/gone", "/relative"}, home.Links())
	assert.Equal(t, []string{ts.URL + "/"}, byURL[ts.URL+"/team"].Links())
	assert.Equal(t, crawler.SentinelNotHTML, byURL[ts.URL+"/logo.png"].ContentText())
	assert.Equal(t, crawler.SentinelError, byURL[ts.URL+"/gone"].ContentText())
	assert.Equal(t, crawler.SentinelError, byURL["/relative"].ContentText())
}

// panickyClassifier blows up on one URL and serves HTML for the rest.
type panickyClassifier struct {
	bad string
}

func (c panickyClassifier) Classify(_ context.Context, url string) (crawler.Document, error) {
	if url == c.bad {
		panic("boom")
	}
	return crawler.Document{URL: url, Text: "<!DOCTYPE html><p>ok</p>"}, nil
}

func TestCoordinatorFailingPageDoesNotStopCrawl(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	coord := New(store, panickyClassifier{bad: "bad.ch"}, nil, uuid.New(), Config{
		Workers: 2,
		Worker:  worker.Config{IdleBackoff: time.Millisecond},
	}, zap.NewNop())

	_, err := coord.Run(context.Background(), []string{"bad.ch", "good.ch", "fine.ch"})
	require.NoError(t, err)

	empty, err := store.IsFrontierEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)

	pages, err := store.Pages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for _, p := range pages {
		assert.True(t, p.Visited, "page %s not visited", p.URL)
		assert.False(t, p.InUse, "page %s still leased", p.URL)
		if p.URL == "bad.ch" {
			assert.Equal(t, crawler.SentinelError, p.ContentText())
		} else {
			assert.Equal(t, "<!DOCTYPE html><p>ok</p>", p.ContentText())
		}
	}
}

func TestCoordinatorSeedSkipsDuplicates(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	coord := New(store, nil, nil, nil, Config{}, nil)

	n, err := coord.Seed(context.Background(), []string{"test.ch", "help.ch", "test.ch", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = coord.Seed(context.Background(), []string{"help.ch"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCoordinatorRunFailsOnSeedFault(t *testing.T) {
	t.Parallel()
	store := &crawler.MockPageStore{}
	storeErr := errors.New("read-only database")
	store.On("InsertUnvisited", mock.Anything, "test.ch").Return(crawler.PageID(0), storeErr)

	coord := New(store, nil, nil, uuid.New(), Config{Workers: 2}, nil)
	_, err := coord.Run(context.Background(), []string{"test.ch"})
	require.ErrorIs(t, err, storeErr)
	store.AssertNotCalled(t, "IsFrontierEmpty", mock.Anything)
}

func TestCoordinatorCombinesWorkerErrors(t *testing.T) {
	t.Parallel()
	store := &crawler.MockPageStore{}
	storeErr := errors.New("db locked")
	store.On("IsFrontierEmpty", mock.Anything).Return(false, storeErr)

	coord := New(store, nil, nil, uuid.New(), Config{
		Workers: 2,
		Worker:  worker.Config{MaxConsecutiveErrors: 1},
	}, nil)
	_, err := coord.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, storeErr)
}

func TestCoordinatorEmptyFrontierReturnsImmediately(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	coord := New(store, nil, nil, uuid.New(), Config{}, nil)

	summary, err := coord.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, defaultWorkers, summary.Workers)
	assert.Zero(t, summary.Seeded)
}

type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestCoordinatorSummaryUsesClock(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	clk := &steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 3 * time.Second}
	coord := New(store, nil, nil, uuid.New(), Config{Workers: 1, Clock: clk}, nil)

	summary, err := coord.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, summary.Duration)
}

func TestCoordinatorRunIDFailure(t *testing.T) {
	t.Parallel()
	coord := New(&crawler.MockPageStore{}, nil, nil, failingIDs{}, Config{}, nil)
	_, err := coord.Run(context.Background(), []string{"test.ch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id")
}

func TestCoordinatorCanceledRunStopsWorkers(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := New(store, nil, nil, uuid.New(), Config{Workers: 4}, nil)
	_, err := coord.Run(ctx, nil)
	require.NoError(t, err)
}
