package alphavantage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/fincache/internal/domain"
)

// CompanyOverview is the subset of the OVERVIEW response the cache uses.
type CompanyOverview struct {
	Symbol               string
	Name                 string
	Description          string
	Exchange             string
	Currency             string
	Sector               string
	Industry             string
	MarketCapitalization float64
	PERatio              float64
	Beta                 float64
	DividendPerShare     float64
	SharesOutstanding    float64
}

// GlobalQuote is a parsed GLOBAL_QUOTE response.
type GlobalQuote struct {
	Symbol        string
	Open          float64
	High          float64
	Low           float64
	Price         float64
	Volume        int64
	PreviousClose float64
	Change        float64
	ChangePercent float64
}

type statementResponse[T any] struct {
	Symbol        string `json:"symbol"`
	AnnualReports []T    `json:"annualReports"`
}

type rawIncomeStatement struct {
	FiscalDateEnding       string `json:"fiscalDateEnding"`
	TotalRevenue           string `json:"totalRevenue"`
	CostOfRevenue          string `json:"costOfRevenue"`
	GrossProfit            string `json:"grossProfit"`
	OperatingIncome        string `json:"operatingIncome"`
	EBITDA                 string `json:"ebitda"`
	InterestExpense        string `json:"interestExpense"`
	IncomeTaxExpense       string `json:"incomeTaxExpense"`
	NetIncome              string `json:"netIncome"`
	ResearchAndDevelopment string `json:"researchAndDevelopment"`
}

type rawBalanceSheet struct {
	FiscalDateEnding                      string `json:"fiscalDateEnding"`
	TotalAssets                           string `json:"totalAssets"`
	TotalLiabilities                      string `json:"totalLiabilities"`
	CashAndCashEquivalentsAtCarryingValue string `json:"cashAndCashEquivalentsAtCarryingValue"`
	ShortLongTermDebtTotal                string `json:"shortLongTermDebtTotal"`
	ShortTermDebt                         string `json:"shortTermDebt"`
	LongTermDebt                          string `json:"longTermDebt"`
	TotalShareholderEquity                string `json:"totalShareholderEquity"`
	TotalCurrentAssets                    string `json:"totalCurrentAssets"`
	TotalCurrentLiabilities               string `json:"totalCurrentLiabilities"`
	Goodwill                              string `json:"goodwill"`
	Inventory                             string `json:"inventory"`
}

type rawCashFlow struct {
	FiscalDateEnding                     string `json:"fiscalDateEnding"`
	OperatingCashflow                    string `json:"operatingCashflow"`
	CapitalExpenditures                  string `json:"capitalExpenditures"`
	DepreciationDepletionAndAmortization string `json:"depreciationDepletionAndAmortization"`
	DividendPayout                       string `json:"dividendPayout"`
	PaymentsForRepurchaseOfCommonStock   string `json:"paymentsForRepurchaseOfCommonStock"`
}

type rawEarnings struct {
	FiscalDateEnding   string `json:"fiscalDateEnding"`
	ReportedDate       string `json:"reportedDate"`
	ReportedEPS        string `json:"reportedEPS"`
	EstimatedEPS       string `json:"estimatedEPS"`
	SurprisePercentage string `json:"surprisePercentage"`
}

func parseCompanyOverview(body []byte) (*CompanyOverview, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse company overview: %w", err)
	}

	return &CompanyOverview{
		Symbol:               raw["Symbol"],
		Name:                 raw["Name"],
		Description:          raw["Description"],
		Exchange:             raw["Exchange"],
		Currency:             raw["Currency"],
		Sector:               raw["Sector"],
		Industry:             raw["Industry"],
		MarketCapitalization: parseFloat64(raw["MarketCapitalization"]),
		PERatio:              parseFloat64(raw["PERatio"]),
		Beta:                 parseFloat64(raw["Beta"]),
		DividendPerShare:     parseFloat64(raw["DividendPerShare"]),
		SharesOutstanding:    parseFloat64(raw["SharesOutstanding"]),
	}, nil
}

func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var resp struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse global quote: %w", err)
	}

	q := resp.Quote
	return &GlobalQuote{
		Symbol:        q["01. symbol"],
		Open:          parseFloat64(q["02. open"]),
		High:          parseFloat64(q["03. high"]),
		Low:           parseFloat64(q["04. low"]),
		Price:         parseFloat64(q["05. price"]),
		Volume:        parseInt64(q["06. volume"]),
		PreviousClose: parseFloat64(q["08. previous close"]),
		Change:        parseFloat64(q["09. change"]),
		ChangePercent: parseFloat64(q["10. change percent"]),
	}, nil
}

func parseIncomeStatements(body []byte) ([]domain.IncomeStatement, error) {
	var resp statementResponse[rawIncomeStatement]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse income statement: %w", err)
	}

	out := make([]domain.IncomeStatement, 0, len(resp.AnnualReports))
	for _, r := range resp.AnnualReports {
		out = append(out, domain.IncomeStatement{
			FiscalDateEnding: r.FiscalDateEnding,
			TotalRevenue:     parseFloat64(r.TotalRevenue),
			CostOfRevenue:    parseFloat64(r.CostOfRevenue),
			GrossProfit:      parseFloat64(r.GrossProfit),
			OperatingIncome:  parseFloat64(r.OperatingIncome),
			EBITDA:           parseFloat64(r.EBITDA),
			InterestExpense:  parseFloat64(r.InterestExpense),
			IncomeTaxExpense: parseFloat64(r.IncomeTaxExpense),
			NetIncome:        parseFloat64(r.NetIncome),
			ResearchAndDev:   parseFloat64(r.ResearchAndDevelopment),
		})
	}
	sortNewestFirst(out, func(s domain.IncomeStatement) string { return s.FiscalDateEnding })
	return out, nil
}

func parseBalanceSheets(body []byte) ([]domain.BalanceSheet, error) {
	var resp statementResponse[rawBalanceSheet]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse balance sheet: %w", err)
	}

	out := make([]domain.BalanceSheet, 0, len(resp.AnnualReports))
	for _, r := range resp.AnnualReports {
		debt := parseFloat64(r.ShortLongTermDebtTotal)
		if debt == 0 {
			debt = parseFloat64(r.ShortTermDebt) + parseFloat64(r.LongTermDebt)
		}
		out = append(out, domain.BalanceSheet{
			FiscalDateEnding:   r.FiscalDateEnding,
			TotalAssets:        parseFloat64(r.TotalAssets),
			TotalLiabilities:   parseFloat64(r.TotalLiabilities),
			CashAndEquivalents: parseFloat64(r.CashAndCashEquivalentsAtCarryingValue),
			TotalDebt:          debt,
			ShareholderEquity:  parseFloat64(r.TotalShareholderEquity),
			CurrentAssets:      parseFloat64(r.TotalCurrentAssets),
			CurrentLiabilities: parseFloat64(r.TotalCurrentLiabilities),
			Goodwill:           parseFloat64(r.Goodwill),
			Inventory:          parseFloat64(r.Inventory),
		})
	}
	sortNewestFirst(out, func(s domain.BalanceSheet) string { return s.FiscalDateEnding })
	return out, nil
}

func parseCashFlows(body []byte) ([]domain.CashFlow, error) {
	var resp statementResponse[rawCashFlow]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse cash flow: %w", err)
	}

	out := make([]domain.CashFlow, 0, len(resp.AnnualReports))
	for _, r := range resp.AnnualReports {
		operating := parseFloat64(r.OperatingCashflow)
		capex := parseFloat64(r.CapitalExpenditures)
		out = append(out, domain.CashFlow{
			FiscalDateEnding:         r.FiscalDateEnding,
			OperatingCashflow:        operating,
			CapitalExpenditures:      capex,
			DepreciationAmortization: parseFloat64(r.DepreciationDepletionAndAmortization),
			FreeCashFlow:             operating - capex,
			DividendPayout:           parseFloat64(r.DividendPayout),
			ShareRepurchase:          parseFloat64(r.PaymentsForRepurchaseOfCommonStock),
		})
	}
	sortNewestFirst(out, func(s domain.CashFlow) string { return s.FiscalDateEnding })
	return out, nil
}

// parseEarnings returns quarterly earnings; annual rows carry no reported date.
func parseEarnings(body []byte) ([]domain.EarningsReport, error) {
	var resp struct {
		QuarterlyEarnings []rawEarnings `json:"quarterlyEarnings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse earnings: %w", err)
	}

	out := make([]domain.EarningsReport, 0, len(resp.QuarterlyEarnings))
	for _, r := range resp.QuarterlyEarnings {
		out = append(out, domain.EarningsReport{
			FiscalDateEnding:   r.FiscalDateEnding,
			ReportedDate:       r.ReportedDate,
			ReportedEPS:        parseFloat64(r.ReportedEPS),
			EstimatedEPS:       parseFloat64(r.EstimatedEPS),
			SurprisePercentage: parseFloat64(r.SurprisePercentage),
		})
	}
	sortNewestFirst(out, func(s domain.EarningsReport) string { return s.FiscalDateEnding })
	return out, nil
}

// parseFloat64 parses a numeric field. Alpha Vantage uses "None" and "-" for
// missing values and appends "%" to percentages; both read as plain numbers.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "None", "null", "-":
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt64(s string) int64 {
	return int64(parseFloat64(s))
}
