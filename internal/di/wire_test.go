package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:       t.TempDir(),
		LogLevel:      "info",
		Port:          8080,
		AlphaVantage:  config.AlphaVantageConfig{APIKey: "test-key", DailyLimit: 25},
		Cache:         cache.DefaultConfig(),
		LocalStorage:  config.LocalSQLite,
		RemoteBackend: config.RemoteMemory,

		RefreshSchedule: "@every 30m",
		PurgeSchedule:   "@daily",
		WALSchedule:     "@hourly",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { assert.NoError(t, container.Close()) })

	assert.Same(t, cfg, container.Config)
	assert.NotNil(t, container.LocalDB)
	assert.NotNil(t, container.LocalStore)
	assert.NotNil(t, container.RemoteStore)
	assert.NotNil(t, container.AlphaVantageClient)
	assert.NotNil(t, container.CacheService)
	assert.NotNil(t, container.Registry)
	assert.NotNil(t, container.Metrics)
	assert.False(t, container.StartedAt.IsZero())

	assert.NotNil(t, jobs.CacheRefresh)
	assert.NotNil(t, jobs.LocalCleanup)
	assert.NotNil(t, jobs.WALCheckpoint)
	assert.Equal(t, 3, container.Scheduler.Len())

	assert.Equal(t, cfg.Cache, container.CacheService.Configuration())
	assert.Equal(t, 25, container.AlphaVantageClient.GetRemainingRequests())
}

func TestWire_MemoryOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.LocalStorage = config.LocalMemory
	cfg.RemoteBackend = config.RemoteNone
	cfg.PurgeSchedule = ""

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, container.Close()) })

	assert.Nil(t, container.LocalDB)
	assert.Nil(t, container.RemoteStore)
	assert.NotNil(t, container.LocalStore)
	assert.Nil(t, jobs.LocalCleanup)
	assert.Nil(t, jobs.WALCheckpoint)
	assert.Equal(t, 1, container.Scheduler.Len())
}

func TestWire_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RemoteBackend = config.RemoteRedis
	cfg.Redis.Addr = mr.Addr()

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, container.Close()) })

	require.NotNil(t, container.RedisClient)
	require.NotNil(t, container.RemoteStore)
	assert.NoError(t, container.RedisClient.Ping(context.Background()))
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshSchedule = "every now and then"

	container, jobs, err := Wire(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "cache refresh job")
	assert.Nil(t, container)
	assert.Nil(t, jobs)
}

func TestWire_NilConfig(t *testing.T) {
	_, _, err := Wire(nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRegisterJobs_RequiresService(t *testing.T) {
	_, err := RegisterJobs(nil, testConfig(t), zerolog.Nop())
	assert.Error(t, err)

	_, err = RegisterJobs(&Container{}, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}

func TestContainer_CloseIsSafeWhenEmpty(t *testing.T) {
	assert.NoError(t, (&Container{}).Close())
}

func TestWire_LoadsStoredUsersAfterRestart(t *testing.T) {
	cfg := testConfig(t)

	first, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)

	now := time.Now()
	meta := domain.CacheMetadata{
		CachedAt:   now,
		ExpiresAt:  now.Add(24 * time.Hour),
		DataSource: domain.DataSourceAPI,
		Version:    domain.SchemaVersion,
	}
	_, err = first.LocalStore.Set(context.Background(), "alice", "AAPL", &domain.FinancialRecord{Symbol: "AAPL"}, meta)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	assert.Equal(t, []string{"alice"}, second.CacheService.ActiveUsers())
}

