package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/fincache/internal/compression"
	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/aristath/fincache/internal/storage/local"
	"github.com/aristath/fincache/internal/storage/remote"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// mockFetcher is a testify spy for the fetch collaborator.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchRecord(ctx context.Context, symbol string) (*domain.FinancialRecord, error) {
	args := m.Called(ctx, symbol)
	record, _ := args.Get(0).(*domain.FinancialRecord)
	return record, args.Error(1)
}

type fixture struct {
	svc     *Service
	local   *local.Store
	remote  *remote.Store
	fetcher *mockFetcher
	policy  *staleness.Policy
	clock   clockwork.FakeClock
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := clockwork.NewFakeClockAt(testNow)
	policy := staleness.NewPolicy(staleness.DefaultConfig(), clock, zerolog.Nop())
	localStore := local.NewStore(local.NewMemoryStorage(), policy, cfg.MaxCacheSize, zerolog.Nop())
	remoteStore, err := remote.NewStore(remote.NewMemoryClient(), policy, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(remoteStore.Close)

	fetcher := new(mockFetcher)
	svc, err := NewService(
		cfg,
		localStore,
		remoteStore,
		fetcher,
		compression.NewEngine(compression.DefaultConfig(), zerolog.Nop()),
		staleness.NewDetector(),
		policy,
		zerolog.Nop(),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Wait)

	return &fixture{
		svc:     svc,
		local:   localStore,
		remote:  remoteStore,
		fetcher: fetcher,
		policy:  policy,
		clock:   clock,
	}
}

// newServiceWith builds a service over a single strategy, used as the local
// tier with the remote tier disabled.
func newServiceWith(t *testing.T, store Strategy, fetcher Fetcher, mutate func(*Config)) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.UseRemoteStorage = false
	if mutate != nil {
		mutate(&cfg)
	}

	policy := staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewFakeClockAt(testNow), zerolog.Nop())
	svc, err := NewService(cfg, store, nil, fetcher, compression.NewEngine(compression.DefaultConfig(), zerolog.Nop()), nil, policy, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Wait)
	return svc
}

func testRecord(symbol string) *domain.FinancialRecord {
	return &domain.FinancialRecord{
		Symbol:            symbol,
		Name:              symbol + " Inc.",
		Currency:          domain.CurrencyUSD,
		Price:             190.25,
		SharesOutstanding: 15_000_000_000,
		MarketCap:         190.25 * 15_000_000_000,
		IncomeStatements: []domain.IncomeStatement{
			{FiscalDateEnding: "2024-09-30", TotalRevenue: 391e9, OperatingIncome: 123e9, NetIncome: 94e9, IncomeTaxExpense: 29e9, InterestExpense: 1e9},
			{FiscalDateEnding: "2023-09-30", TotalRevenue: 383e9, OperatingIncome: 114e9, NetIncome: 97e9, IncomeTaxExpense: 17e9, InterestExpense: 3e9},
		},
		BalanceSheets: []domain.BalanceSheet{
			{FiscalDateEnding: "2024-09-30", TotalAssets: 365e9, TotalLiabilities: 308e9, CashAndEquivalents: 30e9, TotalDebt: 97e9, ShareholderEquity: 57e9},
		},
		Earnings: []domain.EarningsReport{
			{FiscalDateEnding: "2025-03-31", ReportedDate: "2025-05-01", ReportedEPS: 1.65},
			{FiscalDateEnding: "2024-12-31", ReportedDate: "2025-01-30", ReportedEPS: 2.40},
			{FiscalDateEnding: "2024-09-30", ReportedDate: "2024-10-31", ReportedEPS: 1.64},
			{FiscalDateEnding: "2024-06-30", ReportedDate: "2024-08-01", ReportedEPS: 1.40},
		},
	}
}

func metadata(cachedAgo, expiresIn time.Duration) domain.CacheMetadata {
	return domain.CacheMetadata{
		CachedAt:   testNow.Add(-cachedAgo),
		ExpiresAt:  testNow.Add(expiresIn),
		DataSource: domain.DataSourceAPI,
		Version:    domain.SchemaVersion,
	}
}

// spyStrategy records calls and answers IsFresh from a fixed table.
type spyStrategy struct {
	mu      sync.Mutex
	calls   []string
	symbols []string
	fresh   map[string]bool
	err     error
}

func (s *spyStrategy) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.err
}

func (s *spyStrategy) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *spyStrategy) Get(context.Context, string, string) (*domain.CacheEntry, error) {
	return nil, s.record("get")
}

func (s *spyStrategy) Set(context.Context, string, string, *domain.FinancialRecord, domain.CacheMetadata) (string, error) {
	if err := s.record("set"); err != nil {
		return "", err
	}
	return "id", nil
}

func (s *spyStrategy) Remove(context.Context, string, string) (bool, error) {
	err := s.record("remove")
	return err == nil, err
}

func (s *spyStrategy) Clear(context.Context, string) (int, error) {
	return 0, s.record("clear")
}

func (s *spyStrategy) GetStatistics(context.Context, string) (domain.CacheStatistics, error) {
	return domain.CacheStatistics{}, s.record("stats")
}

func (s *spyStrategy) IsFresh(_ context.Context, _ string, symbol string) (bool, error) {
	if err := s.record("isFresh"); err != nil {
		return false, err
	}
	return s.fresh[symbol], nil
}

func (s *spyStrategy) GetCachedSymbols(context.Context, string) ([]string, error) {
	if err := s.record("symbols"); err != nil {
		return nil, err
	}
	return s.symbols, nil
}

func (s *spyStrategy) Name() string { return "spy" }

var errBackendDown = errors.New("backend unavailable")
