package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand, which exposes search over HTTP.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand,
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", appInstance.GetConfig().Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := newHTTPServer(appInstance.APIServer().Handler())
	return runHTTPServer(cmd.Context(), srv, ln, appInstance.GetLogger().Named("http"))
}
