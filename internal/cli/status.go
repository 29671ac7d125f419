package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective cache settings",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			cfg := a.container.CacheService.Configuration()
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), cfg)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintf(w, "Default TTL\t%s\n", cfg.DefaultTTL)
			fmt.Fprintf(w, "Max age\t%s\n", cfg.MaxAge)
			fmt.Fprintf(w, "Max cache size\t%d bytes\n", cfg.MaxCacheSize)
			fmt.Fprintf(w, "Local storage\t%t\n", cfg.UseLocalStorage)
			fmt.Fprintf(w, "Remote storage\t%t\n", cfg.UseRemoteStorage)
			fmt.Fprintf(w, "Compression\t%t\n", cfg.EnableCompression)
			fmt.Fprintf(w, "Background refresh\t%t\n", cfg.EnableBackgroundRefresh)
			fmt.Fprintf(w, "Background concurrency\t%d\n", cfg.BackgroundConcurrency)
			fmt.Fprintf(w, "Deduplicate fetches\t%t\n", cfg.DeduplicateFetches)
			return w.Flush()
		}),
	}
}

func newQuotaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining Alpha Vantage requests for today",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			client := a.container.AlphaVantageClient
			if client == nil {
				return fmt.Errorf("alpha vantage client not configured")
			}

			remaining := client.GetRemainingRequests()
			if a.output == outputJSON {
				return a.printJSON(cmd.OutOrStdout(), map[string]int{"remaining": remaining})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d requests remaining today\n", remaining)
			return nil
		}),
	}
}
