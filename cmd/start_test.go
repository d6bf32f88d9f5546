package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartCmd_CrawlsSeedsIntoStore(t *testing.T) {
	t.Parallel()
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<!DOCTYPE html><p>quartz home</p><a href="%s/next">next</a>`, base)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><p>more quartz</p>`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	base = ts.URL

	store := filepath.Join(t.TempDir(), "database.db3")
	out, err := execute(context.Background(), t,
		"start", "--store", store, "--seed", ts.URL, "--workers", "2", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "1 new seeds, 2 workers")

	out, err = execute(context.Background(), t, "search", "quartz", "--store", store)
	require.NoError(t, err)
	assert.Contains(t, out, ts.URL+" (")
	assert.Contains(t, out, ts.URL+"/next (")
}

func TestStartCmd_RejectsArgs(t *testing.T) {
	t.Parallel()
	_, err := execute(context.Background(), t, "start", "extra", "--store", filepath.Join(t.TempDir(), "x.db3"))
	require.Error(t, err)
}

func TestStartCmd_MetricsListenFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	_, err = execute(context.Background(), t,
		"start", "--store", filepath.Join(t.TempDir(), "x.db3"), "--metrics-addr", ln.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen for metrics")
}

func TestRunHTTPServer_ServesUntilCanceled(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runHTTPServer(ctx, newHTTPServer(mux), ln, zap.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunHTTPServer_ServeError(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = runHTTPServer(context.Background(), newHTTPServer(http.NewServeMux()), ln, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server error")
}

func TestStartMetricsServer_ServesMetrics(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	stop, err := startMetricsServer(context.Background(), addr, zap.NewNop())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
