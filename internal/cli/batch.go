package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/utils"
)

func newPreloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preload USER SYMBOL...",
		Short: "Fetch and store symbols that have no usable entry",
		Long:  "Symbols may be given as separate arguments or comma-separated lists.",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			symbols := utils.ParseSymbols(args[1:]...)
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols given")
			}
			report := a.container.CacheService.PreloadData(cmd.Context(), args[0], symbols)
			return a.printReport(cmd, report)
		}),
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh USER",
		Short: "Refetch every stale entry of a user",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			report := a.container.CacheService.RefreshCacheInBackground(cmd.Context(), args[0])
			return a.printReport(cmd, report)
		}),
	}
}

// printReport prints a batch report. Failed symbols make the command fail
// after the report is printed.
func (a *app) printReport(cmd *cobra.Command, report cache.BatchReport) error {
	if a.output == outputJSON {
		if err := a.printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
		fmt.Fprintf(w, "Refreshed\t%s\n", joinOrDash(report.Refreshed))
		fmt.Fprintf(w, "Skipped\t%s\n", joinOrDash(report.Skipped))
		fmt.Fprintf(w, "Failed\t%s\n", joinOrDash(report.Failed))
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d symbols failed", len(report.Failed), len(report.Requested))
	}
	return nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
