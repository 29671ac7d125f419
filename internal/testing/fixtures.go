package testing

import (
	"fmt"
	"strings"

	"github.com/aristath/fincache/internal/domain"
)

// NewRecordFixture returns a record with annual statements for the given
// number of fiscal years, newest first, ending with fiscal 2024. Quarterly
// earnings cover the same span.
func NewRecordFixture(symbol string, years int) *domain.FinancialRecord {
	symbol = strings.ToUpper(symbol)
	record := &domain.FinancialRecord{
		Symbol:            symbol,
		Name:              symbol + " Corp",
		Currency:          domain.CurrencyUSD,
		Exchange:          "NASDAQ",
		Sector:            "TECHNOLOGY",
		Industry:          "SOFTWARE",
		Price:             150,
		SharesOutstanding: 1_000_000,
		MarketCap:         150_000_000,
		PERatio:           25,
		Beta:              1.1,
	}

	for i := 0; i < years; i++ {
		year := 2024 - i
		date := fmt.Sprintf("%d-12-31", year)
		scale := float64(years - i)

		record.IncomeStatements = append(record.IncomeStatements, domain.IncomeStatement{
			FiscalDateEnding: date,
			TotalRevenue:     1000 * scale,
			CostOfRevenue:    400 * scale,
			GrossProfit:      600 * scale,
			OperatingIncome:  300 * scale,
			NetIncome:        200 * scale,
		})
		record.BalanceSheets = append(record.BalanceSheets, domain.BalanceSheet{
			FiscalDateEnding:   date,
			TotalAssets:        5000 * scale,
			TotalLiabilities:   2000 * scale,
			CashAndEquivalents: 800 * scale,
			ShareholderEquity:  3000 * scale,
		})
		record.CashFlows = append(record.CashFlows, domain.CashFlow{
			FiscalDateEnding:    date,
			OperatingCashflow:   350 * scale,
			CapitalExpenditures: 50 * scale,
			FreeCashFlow:        300 * scale,
		})
		for _, quarter := range []string{"12-31", "09-30", "06-30", "03-31"} {
			record.Earnings = append(record.Earnings, domain.EarningsReport{
				FiscalDateEnding: fmt.Sprintf("%d-%s", year, quarter),
				ReportedEPS:      0.5 * scale,
				EstimatedEPS:     0.48 * scale,
			})
		}
	}
	return record
}
