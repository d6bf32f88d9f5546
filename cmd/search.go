package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const defaultSearchAmount = 10

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query> [amount]",
		Short: "Searches the page store for the keyword",
		Long: `Ranks up to amount stored pages (default 10) that contain any word of the
query in their URL or content, and prints them best first.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runSearchCommand,
	}
}

func runSearchCommand(cmd *cobra.Command, args []string) error {
	amount := defaultSearchAmount
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[1])
		}
		amount = n
	}

	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	results, err := appInstance.Ranker().Rank(cmd.Context(), args[0], amount)
	if err != nil {
		return fmt.Errorf("search %q: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "no results for %q\n", args[0])
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s (id=%d, score=%d, visited=%t, links_to=%d)\n",
			i+1, r.URL, r.ID, r.Score, r.Visited, r.Outbound)
	}
	return nil
}
