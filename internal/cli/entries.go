package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCachedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cached USER SYMBOL",
		Short: "Report whether a fresh entry exists",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			cached := a.container.CacheService.IsSymbolCached(cmd.Context(), args[0], args[1])
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"symbol": args[1],
					"cached": cached,
				})
			}
			if cached {
				fmt.Fprintln(cmd.OutOrStdout(), "fresh")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not cached")
			}
			return nil
		}),
	}
}

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols USER",
		Short: "List the symbols cached for a user",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			symbols := a.container.CacheService.GetCachedSymbols(cmd.Context(), args[0])
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), symbols)
			}
			for _, symbol := range symbols {
				fmt.Fprintln(cmd.OutOrStdout(), symbol)
			}
			return nil
		}),
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats USER",
		Short: "Show cache statistics for a user",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			stats := a.container.CacheService.GetCacheStatistics(cmd.Context(), args[0])
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintf(w, "Entries\t%d\n", stats.TotalEntries)
			fmt.Fprintf(w, "Fresh\t%d\n", stats.FreshEntries)
			fmt.Fprintf(w, "Stale\t%d\n", stats.StaleEntries)
			fmt.Fprintf(w, "Size\t%d bytes\n", stats.TotalSize)
			fmt.Fprintf(w, "Hit ratio\t%.2f\n", stats.HitRatio)
			fmt.Fprintf(w, "Average age\t%s\n", stats.AverageAge.Round(time.Second))
			if stats.NewestEntry != "" {
				fmt.Fprintf(w, "Newest\t%s\n", stats.NewestEntry)
				fmt.Fprintf(w, "Oldest\t%s\n", stats.OldestEntry)
			}
			return w.Flush()
		}),
	}
}

func newInvalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate USER [SYMBOL]",
		Short: "Remove one entry, or every entry of a user",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			symbol := ""
			if len(args) == 2 {
				symbol = args[1]
			}

			if !a.container.CacheService.InvalidateCache(cmd.Context(), args[0], symbol) {
				return fmt.Errorf("invalidation failed on at least one storage backend")
			}
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), map[string]bool{"invalidated": true})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "invalidated")
			return nil
		}),
	}
}
