// Package cmd defines and implements the CLI commands for the guugle executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/api"
	"github.com/JakeFAU/guugle/internal/app"
	"github.com/JakeFAU/guugle/internal/config"
	"github.com/JakeFAU/guugle/internal/coordinator"
	"github.com/JakeFAU/guugle/internal/logging"
	"github.com/JakeFAU/guugle/internal/ranker"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a different app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	Coordinator() *coordinator.Coordinator
	Ranker() *ranker.Ranker
	APIServer() *api.Server
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "guugle",
		Short: "A small concurrent web crawler and keyword search engine.",
		Long: `guugle crawls the web from a set of seed URLs into a local page store
(SQLite by default, Postgres when given a DSN) and ranks the stored pages
for keyword queries by link counts and keyword occurrences.`,
		SilenceUsage: true,

		// Load configuration, build the logger and open the store before any
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringP("store", "s", "", "page store: SQLite file path or postgres:// DSN (default ./database.db3)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	logger, lerr := logging.New(false, false)
	if lerr != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Fatal("command execution failed", zap.Error(err))
}
