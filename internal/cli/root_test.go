package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/cli"
	"github.com/aristath/fincache/internal/clients/alphavantage"
	"github.com/aristath/fincache/internal/di"
	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/aristath/fincache/internal/storage/local"
	testhelpers "github.com/aristath/fincache/internal/testing"
)

type harness struct {
	container *di.Container
	fetches   atomic.Int32
	opened    atomic.Int32
	closed    atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{}
	fetcher := cache.FetcherFunc(func(ctx context.Context, symbol string) (*domain.FinancialRecord, error) {
		h.fetches.Add(1)
		if symbol == "FAIL" {
			return nil, errors.New("upstream unavailable")
		}
		return testhelpers.NewRecordFixture(symbol, 3), nil
	})

	policy := staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewFakeClock(), zerolog.Nop())
	store := local.NewStore(local.NewMemoryStorage(), policy, 0, zerolog.Nop())
	service, err := cache.NewService(cache.DefaultConfig(), store, nil, fetcher, nil, nil, policy, zerolog.Nop())
	require.NoError(t, err)

	avConfig := alphavantage.DefaultConfig("test-key")
	avConfig.DailyLimit = 10
	h.container = &di.Container{
		CacheService:       service,
		AlphaVantageClient: alphavantage.NewClientWithConfig(avConfig, zerolog.Nop()),
	}
	return h
}

func (h *harness) open(zerolog.Logger) (*di.Container, func() error, error) {
	h.opened.Add(1)
	return h.container, func() error {
		h.container.CacheService.Wait()
		h.closed.Add(1)
		return nil
	}, nil
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := cli.NewRootCmdWithOpener("test", h.open)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestGet(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "get", "alice", "aapl")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL Corp")
	assert.Contains(t, out, "150.00 USD")
	assert.Contains(t, out, "2024-12-31")
	assert.Contains(t, out, "3 income, 3 balance, 3 cash flow")
	assert.Contains(t, out, "upstream")

	out, err = h.run(t, "get", "alice", "AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "cache")
	assert.Equal(t, int32(1), h.fetches.Load())

	_, err = h.run(t, "get", "alice", "AAPL", "--force")
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.fetches.Load())
}

func TestGet_JSON(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "get", "alice", "MSFT", "--output", "json")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "MSFT", result["data"].(map[string]interface{})["symbol"])
}

func TestGet_Failure(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "get", "alice", "FAIL")
	assert.Error(t, err)
	assert.Equal(t, int32(1), h.closed.Load(), "container is released after a failed command")
}

func TestGet_RequiresTwoArgs(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "get", "alice")
	assert.Error(t, err)
	assert.Zero(t, h.fetches.Load())
}

func TestInvalidOutputFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "symbols", "alice", "--output", "yaml")
	assert.ErrorContains(t, err, "output must be")
	assert.Zero(t, h.opened.Load())
}

func TestSymbolsCachedAndInvalidate(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "preload", "alice", "NVDA", "AAPL")
	require.NoError(t, err)

	out, err := h.run(t, "symbols", "alice")
	require.NoError(t, err)
	assert.Equal(t, "AAPL\nNVDA\n", out)

	out, err = h.run(t, "cached", "alice", "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", out)

	out, err = h.run(t, "invalidate", "alice", "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "invalidated\n", out)

	out, err = h.run(t, "cached", "alice", "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "not cached\n", out)

	_, err = h.run(t, "invalidate", "alice")
	require.NoError(t, err)

	out, err = h.run(t, "symbols", "alice", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestPreload_ReportsFailures(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "preload", "alice", "AAPL", "FAIL")
	assert.ErrorContains(t, err, "1 of 2 symbols failed")
	assert.Contains(t, out, "Refreshed  AAPL")
	assert.Contains(t, out, "Failed     FAIL")
}

func TestRefresh_SkipsFreshEntries(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "preload", "alice", "AAPL")
	require.NoError(t, err)

	out, err := h.run(t, "refresh", "alice", "-o", "json")
	require.NoError(t, err)

	var report cache.BatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"AAPL"}, report.Skipped)
	assert.Empty(t, report.Refreshed)
	assert.Equal(t, int32(1), h.fetches.Load())
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "get", "alice", "AAPL")
	require.NoError(t, err)

	out, err := h.run(t, "stats", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries")
	assert.Contains(t, out, "Fresh")

	out, err = h.run(t, "stats", "alice", "-o", "json")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, float64(1), stats["totalEntries"])
}

func TestConfigAndQuota(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Default TTL")
	assert.Contains(t, out, "24h0m0s")

	out, err = h.run(t, "config", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"defaultTtl": 86400000`)

	out, err = h.run(t, "quota")
	require.NoError(t, err)
	assert.Equal(t, "10 requests remaining today\n", out)
}

func TestOpenerFailure(t *testing.T) {
	cmd := cli.NewRootCmdWithOpener("test", func(zerolog.Logger) (*di.Container, func() error, error) {
		return nil, nil, errors.New("no data dir")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"symbols", "alice"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "failed to initialize cache")
}

func TestPreload_CommaSeparatedSymbols(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "preload", "alice", "aapl,msft", "AAPL", "-o", "json")
	require.NoError(t, err)

	var report cache.BatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, report.Refreshed)
	assert.Equal(t, int32(2), h.fetches.Load())
}
