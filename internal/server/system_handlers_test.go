package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wireTestContainer(t *testing.T, localStorage string) (*di.Container, *di.JobInstances) {
	t.Helper()

	cfg := &config.Config{
		DataDir:         t.TempDir(),
		LogLevel:        "info",
		Port:            8080,
		AlphaVantage:    config.AlphaVantageConfig{APIKey: "test-key", DailyLimit: 25},
		Cache:           cache.DefaultConfig(),
		LocalStorage:    localStorage,
		RemoteBackend:   config.RemoteMemory,
		RefreshSchedule: "@every 30m",
		WALSchedule:     "@hourly",
	}

	container, jobs, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })
	return container, jobs
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	container, jobs := wireTestContainer(t, config.LocalSQLite)
	h := NewSystemHandlers(zerolog.Nop(), container, jobs)

	w := httptest.NewRecorder()
	h.HandleSystemStatus(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, config.LocalSQLite, response.LocalStorage)
	assert.Equal(t, config.RemoteMemory, response.RemoteBackend)
	assert.True(t, response.RemoteEnabled)
	assert.Equal(t, 25, response.RemainingAPIRequests)
	assert.Equal(t, []string{"cache_refresh", "wal_checkpoint"}, response.Jobs)
	assert.GreaterOrEqual(t, response.UptimeSeconds, int64(0))
	assert.NotEmpty(t, response.Timestamp)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	t.Run("sqlite local storage", func(t *testing.T) {
		container, jobs := wireTestContainer(t, config.LocalSQLite)
		h := NewSystemHandlers(zerolog.Nop(), container, jobs)

		w := httptest.NewRecorder()
		h.HandleDatabaseStats(w, httptest.NewRequest(http.MethodGet, "/api/system/database", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var response DatabaseStatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Available)
		assert.Equal(t, "local_cache", response.Name)
		assert.Positive(t, response.PageSize)
	})

	t.Run("memory local storage", func(t *testing.T) {
		container, jobs := wireTestContainer(t, config.LocalMemory)
		h := NewSystemHandlers(zerolog.Nop(), container, jobs)

		w := httptest.NewRecorder()
		h.HandleDatabaseStats(w, httptest.NewRequest(http.MethodGet, "/api/system/database", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var response DatabaseStatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Available)
	})
}

func TestSystemHandlers_HandleResetAPICounter(t *testing.T) {
	container, jobs := wireTestContainer(t, config.LocalMemory)
	h := NewSystemHandlers(zerolog.Nop(), container, jobs)

	w := httptest.NewRecorder()
	h.HandleResetAPICounter(w, httptest.NewRequest(http.MethodPost, "/api/system/alphavantage/reset-counter", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"remaining_api_requests": 25}`, w.Body.String())
}

func TestSystemHandlers_NilJobs(t *testing.T) {
	container, _ := wireTestContainer(t, config.LocalMemory)
	h := NewSystemHandlers(zerolog.Nop(), container, nil)

	assert.Empty(t, h.jobs)
}
