package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/fincache/internal/cache"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		force bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get USER SYMBOL",
		Short: "Read a financial record through the cache",
		Long: `Returns the cached record when it is fresh, otherwise fetches it from
Alpha Vantage and stores it. A stale entry is returned when the fetch fails.`,
		Args: cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			result := a.container.CacheService.GetData(cmd.Context(), args[0], args[1], cache.GetOptions{
				ForceRefresh: force,
				TTL:          ttl,
			})

			if a.output == outputJSON {
				if err := a.printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if result.Success {
				printRecord(cmd, result)
			}

			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the cache and fetch from upstream")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "TTL for the stored entry (0 = configured default)")

	return cmd
}

func printRecord(cmd *cobra.Command, result cache.Result) {
	record := result.Data
	source := "upstream"
	if result.FromCache {
		source = "cache"
	}
	freshness := string(result.Freshness)
	if freshness == "" {
		freshness = "fresh"
	}

	latest := "-"
	if len(record.IncomeStatements) > 0 {
		latest = record.IncomeStatements[0].FiscalDateEnding
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
	fmt.Fprintf(w, "Symbol\t%s\n", record.Symbol)
	fmt.Fprintf(w, "Name\t%s\n", record.Name)
	fmt.Fprintf(w, "Price\t%.2f %s\n", record.Price, record.Currency)
	fmt.Fprintf(w, "Market cap\t%.0f\n", record.MarketCap)
	fmt.Fprintf(w, "Latest fiscal year\t%s\n", latest)
	fmt.Fprintf(w, "Statements\t%d income, %d balance, %d cash flow\n",
		len(record.IncomeStatements), len(record.BalanceSheets), len(record.CashFlows))
	fmt.Fprintf(w, "Source\t%s\n", source)
	fmt.Fprintf(w, "Freshness\t%s\n", freshness)
	_ = w.Flush()
}
