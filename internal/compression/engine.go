// Package compression compacts financial records before they are stored.
//
// Compaction is lossy. Essential fields, the ones valuations are computed
// from, are only ever rounded. Everything else may be trimmed, rounded, or
// dropped when it can be recomputed from essential fields.
package compression

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aristath/fincache/internal/domain"
	"github.com/rs/zerolog"
)

// Config holds the size thresholds used to pick a tier.
type Config struct {
	LightThreshold      int // below: light tier
	AggressiveThreshold int // at or above: aggressive tier
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		LightThreshold:      16 * 1024,
		AggressiveThreshold: 64 * 1024,
	}
}

// tierRules describes what one tier does to a record.
type tierRules struct {
	maxAnnual       int // 0 = unbounded
	maxQuarterly    int
	moneyDecimals   int // -1 = no rounding
	ratioDecimals   int
	dropDerivable   bool
	descriptionCap  int // runes, 0 = keep, -1 = drop
	collapseRegions bool
}

var rules = map[domain.CompressionTier]tierRules{
	domain.TierLight: {
		moneyDecimals: -1,
		ratioDecimals: -1,
	},
	domain.TierStandard: {
		maxAnnual:      8,
		maxQuarterly:   12,
		moneyDecimals:  2,
		ratioDecimals:  4,
		dropDerivable:  true,
		descriptionCap: 280,
	},
	domain.TierAggressive: {
		maxAnnual:       4,
		maxQuarterly:    8,
		moneyDecimals:   0,
		ratioDecimals:   2,
		dropDerivable:   true,
		descriptionCap:  -1,
		collapseRegions: true,
	},
}

// Engine compacts records.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a compression engine.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "compression").Logger(),
	}
}

// EstimateSize returns the serialized size of the record in bytes.
func (e *Engine) EstimateSize(record *domain.FinancialRecord) (int, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// SelectTier picks the tier for a payload of the given size.
func (e *Engine) SelectTier(size int) domain.CompressionTier {
	switch {
	case size < e.cfg.LightThreshold:
		return domain.TierLight
	case size < e.cfg.AggressiveThreshold:
		return domain.TierStandard
	default:
		return domain.TierAggressive
	}
}

// SmartCompress returns a compacted copy of the record. The input is never
// modified. Compacting an already compacted record returns an equal record:
// the tier is chosen from the original size and never lowered.
func (e *Engine) SmartCompress(record *domain.FinancialRecord) (*domain.FinancialRecord, error) {
	if record == nil {
		return nil, &domain.CompressionError{Err: errors.New("nil record")}
	}

	out := record.Clone()
	prior := out.Compaction
	out.Compaction = nil

	originalSize, err := e.EstimateSize(out)
	if err != nil {
		return nil, &domain.CompressionError{Err: fmt.Errorf("failed to estimate size: %w", err)}
	}

	tier := e.SelectTier(originalSize)
	if prior != nil {
		originalSize = prior.OriginalSize
		tier = e.SelectTier(originalSize)
		if prior.Tier > tier {
			tier = prior.Tier
		}
	}

	apply(out, rules[tier])

	compactSize, err := e.EstimateSize(out)
	if err != nil {
		return nil, &domain.CompressionError{Err: fmt.Errorf("failed to measure compacted record: %w", err)}
	}
	out.Compaction = &domain.Compaction{
		Tier:         tier,
		OriginalSize: originalSize,
		CompactSize:  compactSize,
	}

	e.log.Debug().
		Str("symbol", out.Symbol).
		Str("tier", tier.String()).
		Int("original_size", originalSize).
		Int("compact_size", compactSize).
		Msg("Compacted record")

	return out, nil
}

func apply(r *domain.FinancialRecord, t tierRules) {
	removeEmpty(r)
	sortNewestFirst(r)

	if t.maxAnnual > 0 {
		r.IncomeStatements = truncate(r.IncomeStatements, t.maxAnnual)
		r.BalanceSheets = truncate(r.BalanceSheets, t.maxAnnual)
		r.CashFlows = truncate(r.CashFlows, t.maxAnnual)
	}
	if t.maxQuarterly > 0 {
		r.Earnings = truncate(r.Earnings, t.maxQuarterly)
	}

	if t.dropDerivable {
		dropDerivable(r)
	}

	switch {
	case t.descriptionCap < 0:
		r.Description = ""
	case t.descriptionCap > 0:
		r.Description = capRunes(r.Description, t.descriptionCap)
	}

	if t.collapseRegions {
		r.RevenueBySegment = collapse(r.RevenueBySegment)
		r.RevenueByGeography = collapse(r.RevenueByGeography)
	}

	if t.moneyDecimals >= 0 {
		roundRecord(r, t.moneyDecimals, t.ratioDecimals)
	}

	// rows emptied by dropping or rounding
	removeEmpty(r)
}

// removeEmpty trims strings and drops blank rows and empty breakdowns.
func removeEmpty(r *domain.FinancialRecord) {
	r.Name = strings.TrimSpace(r.Name)
	r.Exchange = strings.TrimSpace(r.Exchange)
	r.Sector = strings.TrimSpace(r.Sector)
	r.Industry = strings.TrimSpace(r.Industry)
	r.Description = strings.TrimSpace(r.Description)

	r.IncomeStatements = withoutZero(r.IncomeStatements)
	r.BalanceSheets = withoutZero(r.BalanceSheets)
	r.CashFlows = withoutZero(r.CashFlows)
	r.Earnings = withoutZero(r.Earnings)

	r.RevenueBySegment = withoutEmptyKeys(r.RevenueBySegment)
	r.RevenueByGeography = withoutEmptyKeys(r.RevenueByGeography)
}

func withoutZero[T comparable](rows []T) []T {
	var zero T
	var out []T
	for _, row := range rows {
		if row != zero {
			out = append(out, row)
		}
	}
	return out
}

func withoutEmptyKeys(m map[string]float64) map[string]float64 {
	var out map[string]float64
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if out == nil {
			out = make(map[string]float64, len(m))
		}
		out[k] += v
	}
	return out
}

func sortNewestFirst(r *domain.FinancialRecord) {
	sort.SliceStable(r.IncomeStatements, func(i, j int) bool {
		return r.IncomeStatements[i].FiscalDateEnding > r.IncomeStatements[j].FiscalDateEnding
	})
	sort.SliceStable(r.BalanceSheets, func(i, j int) bool {
		return r.BalanceSheets[i].FiscalDateEnding > r.BalanceSheets[j].FiscalDateEnding
	})
	sort.SliceStable(r.CashFlows, func(i, j int) bool {
		return r.CashFlows[i].FiscalDateEnding > r.CashFlows[j].FiscalDateEnding
	})
	sort.SliceStable(r.Earnings, func(i, j int) bool {
		return r.Earnings[i].FiscalDateEnding > r.Earnings[j].FiscalDateEnding
	})
}

func truncate[T any](rows []T, n int) []T {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func dropDerivable(r *domain.FinancialRecord) {
	r.MarketCap = 0
	if eps, ok := r.LatestAnnualEPS(); ok && eps > 0 && r.Price > 0 {
		r.PERatio = 0
	}
	for i := range r.IncomeStatements {
		r.IncomeStatements[i].GrossProfit = 0
		r.IncomeStatements[i].EBITDA = 0
	}
	for i := range r.CashFlows {
		r.CashFlows[i].FreeCashFlow = 0
	}
	for i := range r.Earnings {
		r.Earnings[i].SurprisePercentage = 0
	}
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// collapse replaces a categorical breakdown with its total.
func collapse(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	var total float64
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		total += m[k]
	}
	return map[string]float64{"Total": total}
}

func roundRecord(r *domain.FinancialRecord, money, ratio int) {
	r.Price = round(r.Price, ratio)
	r.SharesOutstanding = round(r.SharesOutstanding, 0)
	r.MarketCap = round(r.MarketCap, money)
	r.PERatio = round(r.PERatio, ratio)
	r.Beta = round(r.Beta, ratio)
	r.DividendPerShare = round(r.DividendPerShare, ratio)

	for i := range r.IncomeStatements {
		s := &r.IncomeStatements[i]
		s.TotalRevenue = round(s.TotalRevenue, money)
		s.CostOfRevenue = round(s.CostOfRevenue, money)
		s.GrossProfit = round(s.GrossProfit, money)
		s.OperatingIncome = round(s.OperatingIncome, money)
		s.EBITDA = round(s.EBITDA, money)
		s.InterestExpense = round(s.InterestExpense, money)
		s.IncomeTaxExpense = round(s.IncomeTaxExpense, money)
		s.NetIncome = round(s.NetIncome, money)
		s.ResearchAndDev = round(s.ResearchAndDev, money)
	}
	for i := range r.BalanceSheets {
		b := &r.BalanceSheets[i]
		b.TotalAssets = round(b.TotalAssets, money)
		b.TotalLiabilities = round(b.TotalLiabilities, money)
		b.CashAndEquivalents = round(b.CashAndEquivalents, money)
		b.TotalDebt = round(b.TotalDebt, money)
		b.ShareholderEquity = round(b.ShareholderEquity, money)
		b.CurrentAssets = round(b.CurrentAssets, money)
		b.CurrentLiabilities = round(b.CurrentLiabilities, money)
		b.Goodwill = round(b.Goodwill, money)
		b.Inventory = round(b.Inventory, money)
	}
	for i := range r.CashFlows {
		c := &r.CashFlows[i]
		c.OperatingCashflow = round(c.OperatingCashflow, money)
		c.CapitalExpenditures = round(c.CapitalExpenditures, money)
		c.DepreciationAmortization = round(c.DepreciationAmortization, money)
		c.FreeCashFlow = round(c.FreeCashFlow, money)
		c.DividendPayout = round(c.DividendPayout, money)
		c.ShareRepurchase = round(c.ShareRepurchase, money)
	}
	for i := range r.Earnings {
		e := &r.Earnings[i]
		e.ReportedEPS = round(e.ReportedEPS, ratio)
		e.EstimatedEPS = round(e.EstimatedEPS, ratio)
		e.SurprisePercentage = round(e.SurprisePercentage, ratio)
	}
	for k, v := range r.RevenueBySegment {
		r.RevenueBySegment[k] = round(v, money)
	}
	for k, v := range r.RevenueByGeography {
		r.RevenueByGeography[k] = round(v, money)
	}
}

func round(v float64, decimals int) float64 {
	if v == 0 {
		return 0
	}
	p := math.Pow(10, float64(decimals))
	// Small negatives round to -0, which encodes differently from 0.
	if r := math.Round(v*p) / p; r != 0 {
		return r
	}
	return 0
}
