// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// FinancialRecord is the per-company fundamentals record served by the cache.
// Statement slices are ordered newest first.
type FinancialRecord struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name,omitempty"`
	Currency          Currency `json:"currency"`
	Exchange          string   `json:"exchange,omitempty"`
	Sector            string   `json:"sector,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	Description       string   `json:"description,omitempty"`
	Price             float64  `json:"price"`
	SharesOutstanding float64  `json:"sharesOutstanding"`

	// Derivable from price and shares / latest EPS
	MarketCap float64 `json:"marketCap,omitempty"`
	PERatio   float64 `json:"peRatio,omitempty"`

	Beta             float64 `json:"beta,omitempty"`
	DividendPerShare float64 `json:"dividendPerShare,omitempty"`

	IncomeStatements []IncomeStatement `json:"incomeStatements,omitempty"`
	BalanceSheets    []BalanceSheet    `json:"balanceSheets,omitempty"`
	CashFlows        []CashFlow        `json:"cashFlows,omitempty"`
	Earnings         []EarningsReport  `json:"earnings,omitempty"`

	// Categorical breakdowns, keyed by segment / region name
	RevenueBySegment   map[string]float64 `json:"revenueBySegment,omitempty"`
	RevenueByGeography map[string]float64 `json:"revenueByGeography,omitempty"`

	Compaction *Compaction `json:"compaction,omitempty"`
}

// IncomeStatement is one annual income statement.
type IncomeStatement struct {
	FiscalDateEnding string  `json:"fiscalDateEnding"`
	TotalRevenue     float64 `json:"totalRevenue"`
	CostOfRevenue    float64 `json:"costOfRevenue,omitempty"`
	GrossProfit      float64 `json:"grossProfit,omitempty"`
	OperatingIncome  float64 `json:"operatingIncome"`
	EBITDA           float64 `json:"ebitda,omitempty"`
	InterestExpense  float64 `json:"interestExpense"`
	IncomeTaxExpense float64 `json:"incomeTaxExpense"`
	NetIncome        float64 `json:"netIncome"`
	ResearchAndDev   float64 `json:"researchAndDevelopment,omitempty"`
}

// BalanceSheet is one annual balance sheet.
type BalanceSheet struct {
	FiscalDateEnding   string  `json:"fiscalDateEnding"`
	TotalAssets        float64 `json:"totalAssets"`
	TotalLiabilities   float64 `json:"totalLiabilities"`
	CashAndEquivalents float64 `json:"cashAndEquivalents"`
	TotalDebt          float64 `json:"totalDebt"`
	ShareholderEquity  float64 `json:"shareholderEquity"`
	CurrentAssets      float64 `json:"currentAssets,omitempty"`
	CurrentLiabilities float64 `json:"currentLiabilities,omitempty"`
	Goodwill           float64 `json:"goodwill,omitempty"`
	Inventory          float64 `json:"inventory,omitempty"`
}

// CashFlow is one annual cash flow statement.
type CashFlow struct {
	FiscalDateEnding         string  `json:"fiscalDateEnding"`
	OperatingCashflow        float64 `json:"operatingCashflow"`
	CapitalExpenditures      float64 `json:"capitalExpenditures"`
	DepreciationAmortization float64 `json:"depreciationAmortization"`
	FreeCashFlow             float64 `json:"freeCashFlow,omitempty"`
	DividendPayout           float64 `json:"dividendPayout,omitempty"`
	ShareRepurchase          float64 `json:"shareRepurchase,omitempty"`
}

// EarningsReport is one quarterly earnings announcement.
type EarningsReport struct {
	FiscalDateEnding   string  `json:"fiscalDateEnding"`
	ReportedDate       string  `json:"reportedDate"`
	ReportedEPS        float64 `json:"reportedEPS"`
	EstimatedEPS       float64 `json:"estimatedEPS,omitempty"`
	SurprisePercentage float64 `json:"surprisePercentage,omitempty"`
}

// CompressionTier names a compaction level. Ordered: a higher tier loses more.
type CompressionTier int

const (
	TierNone CompressionTier = iota
	TierLight
	TierStandard
	TierAggressive
)

// String returns the tier name used in logs and metrics.
func (t CompressionTier) String() string {
	switch t {
	case TierLight:
		return "light"
	case TierStandard:
		return "standard"
	case TierAggressive:
		return "aggressive"
	default:
		return "none"
	}
}

// Compaction records how a record was compacted.
type Compaction struct {
	Tier         CompressionTier `json:"tier"`
	OriginalSize int             `json:"originalSize"`
	CompactSize  int             `json:"compactSize"`
}

// DateLayout is the layout of statement and report dates.
const DateLayout = "2006-01-02"

// ParseDate parses a statement date, returning false for empty or malformed values.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy of the record.
func (r *FinancialRecord) Clone() *FinancialRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.IncomeStatements = append([]IncomeStatement(nil), r.IncomeStatements...)
	c.BalanceSheets = append([]BalanceSheet(nil), r.BalanceSheets...)
	c.CashFlows = append([]CashFlow(nil), r.CashFlows...)
	c.Earnings = append([]EarningsReport(nil), r.Earnings...)
	c.RevenueBySegment = cloneMap(r.RevenueBySegment)
	c.RevenueByGeography = cloneMap(r.RevenueByGeography)
	if r.Compaction != nil {
		comp := *r.Compaction
		c.Compaction = &comp
	}
	return &c
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LatestAnnualEPS returns net income per share from the newest income statement.
func (r *FinancialRecord) LatestAnnualEPS() (float64, bool) {
	if len(r.IncomeStatements) == 0 || r.SharesOutstanding == 0 {
		return 0, false
	}
	return r.IncomeStatements[0].NetIncome / r.SharesOutstanding, true
}
