package alphavantage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/fincache/internal/domain"
)

// FetchRecord assembles a financial record from the overview, quote,
// statement and earnings endpoints. It spends six requests of the daily budget.
func (c *Client) FetchRecord(ctx context.Context, symbol string) (*domain.FinancialRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	params := map[string]string{"symbol": symbol}

	body, err := c.request(ctx, "OVERVIEW", params)
	if err != nil {
		return nil, fmt.Errorf("overview for %s: %w", symbol, err)
	}
	overview, err := parseCompanyOverview(body)
	if err != nil {
		return nil, err
	}
	if overview.Symbol == "" {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	body, err = c.request(ctx, "GLOBAL_QUOTE", params)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, err
	}

	body, err = c.request(ctx, "INCOME_STATEMENT", params)
	if err != nil {
		return nil, fmt.Errorf("income statement for %s: %w", symbol, err)
	}
	income, err := parseIncomeStatements(body)
	if err != nil {
		return nil, err
	}

	body, err = c.request(ctx, "BALANCE_SHEET", params)
	if err != nil {
		return nil, fmt.Errorf("balance sheet for %s: %w", symbol, err)
	}
	balance, err := parseBalanceSheets(body)
	if err != nil {
		return nil, err
	}

	body, err = c.request(ctx, "CASH_FLOW", params)
	if err != nil {
		return nil, fmt.Errorf("cash flow for %s: %w", symbol, err)
	}
	cashFlows, err := parseCashFlows(body)
	if err != nil {
		return nil, err
	}

	body, err = c.request(ctx, "EARNINGS", params)
	if err != nil {
		return nil, fmt.Errorf("earnings for %s: %w", symbol, err)
	}
	earnings, err := parseEarnings(body)
	if err != nil {
		return nil, err
	}

	record := &domain.FinancialRecord{
		Symbol:            symbol,
		Name:              overview.Name,
		Currency:          domain.Currency(strings.ToUpper(overview.Currency)),
		Exchange:          overview.Exchange,
		Sector:            overview.Sector,
		Industry:          overview.Industry,
		Description:       overview.Description,
		Price:             quote.Price,
		SharesOutstanding: overview.SharesOutstanding,
		MarketCap:         overview.MarketCapitalization,
		PERatio:           overview.PERatio,
		Beta:              overview.Beta,
		DividendPerShare:  overview.DividendPerShare,
		IncomeStatements:  income,
		BalanceSheets:     balance,
		CashFlows:         cashFlows,
		Earnings:          earnings,
	}
	if record.Currency == "" {
		record.Currency = domain.CurrencyUSD
	}
	if record.MarketCap == 0 && record.Price > 0 {
		record.MarketCap = record.Price * record.SharesOutstanding
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("income_statements", len(income)).
		Int("earnings", len(earnings)).
		Int("remaining_requests", c.GetRemainingRequests()).
		Msg("Fetched financial record")

	return record, nil
}
