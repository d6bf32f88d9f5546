package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/metrics"
)

// newStartCmd creates the 'start' subcommand, which seeds the frontier and
// crawls until it is empty or the process is interrupted.
func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Starts the crawler",
		Long: `Seeds the frontier with the given URLs (already known URLs are skipped)
and runs the worker pool until every known page has been visited. Pages
left leased by an interrupted run are picked up again on the next start.`,
		Args: cobra.NoArgs,
		RunE: runStartCommand,
	}
	cmd.Flags().StringSliceP("seed", "u", nil, "seed URL (repeatable)")
	cmd.Flags().IntP("workers", "t", 0, "number of concurrent workers (default 5)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while crawling")
	return cmd
}

func runStartCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()
	ctx := cmd.Context()

	if cfg.Metrics.Addr != "" {
		stopMetrics, err := startMetricsServer(ctx, cfg.Metrics.Addr, logger.Named("metrics"))
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	summary, err := appInstance.Coordinator().Run(ctx, cfg.Crawler.Seeds)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	if ctx.Err() != nil {
		logger.Info("crawl interrupted; unvisited pages resume on the next start",
			zap.String("run_id", summary.RunID))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "crawl %s finished: %d new seeds, %d workers, %s\n",
		summary.RunID, summary.Seeded, summary.Workers, summary.Duration.Round(time.Millisecond))
	return nil
}

// startMetricsServer serves /metrics on addr until the returned stop func is
// called. stop blocks until the server has shut down.
func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}
	router := chi.NewRouter()
	router.Handle("/metrics", metrics.Handler())

	metricsCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runHTTPServer(metricsCtx, newHTTPServer(router), ln, logger); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// runHTTPServer serves on ln until ctx is done, then shuts down gracefully.
func runHTTPServer(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
