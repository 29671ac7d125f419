package cache

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/aristath/fincache/internal/storage/local"
	"github.com/aristath/fincache/internal/storage/remote"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTiered(t *testing.T) (*Tiered, *local.Store, *remote.Store) {
	t.Helper()
	policy := staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewFakeClockAt(testNow), zerolog.Nop())
	localStore := local.NewStore(local.NewMemoryStorage(), policy, 0, zerolog.Nop())
	remoteStore, err := remote.NewStore(remote.NewMemoryClient(), policy, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(remoteStore.Close)
	return NewTiered(localStore, remoteStore, policy, zerolog.Nop()), localStore, remoteStore
}

func TestTiered_Name(t *testing.T) {
	tiered, _, _ := newTestTiered(t)
	assert.Equal(t, "local+remote", tiered.Name())
}

func TestTiered_RemoteHitPopulatesLocal(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)
	_, err := remoteStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(time.Hour, 23*time.Hour))
	require.NoError(t, err)

	entry, err := tiered.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, testRecord("AAPL"), entry.Data)

	promoted, err := localStore.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, domain.DataSourceRemote, promoted.Metadata.DataSource)
	assert.True(t, entry.Metadata.CachedAt.Equal(promoted.Metadata.CachedAt))
}

func TestTiered_FreshLocalSkipsRemote(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)

	older := testRecord("AAPL")
	older.Price = 100
	_, err := localStore.Set(ctx, "user1", "AAPL", older, metadata(2*time.Hour, 22*time.Hour))
	require.NoError(t, err)
	_, err = remoteStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(time.Hour, 23*time.Hour))
	require.NoError(t, err)

	entry, err := tiered.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, entry.Data.Price)
}

func TestTiered_NewerRemoteWinsOverStaleLocal(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)

	stale := testRecord("AAPL")
	stale.Price = 100
	_, err := localStore.Set(ctx, "user1", "AAPL", stale, metadata(3*day, -2*day))
	require.NoError(t, err)
	_, err = remoteStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(time.Hour, 23*time.Hour))
	require.NoError(t, err)

	entry, err := tiered.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.25, entry.Data.Price)

	fresh, err := localStore.IsFresh(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.True(t, fresh, "local tier repopulated")
}

func TestTiered_OlderRemoteLosesToStaleLocal(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)

	_, err := localStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(2*day, -day))
	require.NoError(t, err)
	older := testRecord("AAPL")
	older.Price = 50
	_, err = remoteStore.Set(ctx, "user1", "AAPL", older, metadata(5*day, -4*day))
	require.NoError(t, err)

	entry, err := tiered.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.25, entry.Data.Price)
}

func TestTiered_ReadFailures(t *testing.T) {
	ctx := context.Background()
	down := &spyStrategy{err: errBackendDown}
	policy := staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewFakeClockAt(testNow), zerolog.Nop())
	healthy := local.NewStore(local.NewMemoryStorage(), policy, 0, zerolog.Nop())
	_, err := healthy.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(2*day, -day))
	require.NoError(t, err)

	t.Run("remote down serves stale local", func(t *testing.T) {
		entry, err := NewTiered(healthy, down, policy, zerolog.Nop()).Get(ctx, "user1", "AAPL")
		require.NoError(t, err)
		assert.NotNil(t, entry)
	})

	t.Run("local down falls back to remote", func(t *testing.T) {
		entry, err := NewTiered(down, healthy, policy, zerolog.Nop()).Get(ctx, "user1", "AAPL")
		require.NoError(t, err)
		assert.NotNil(t, entry)
	})

	t.Run("both down", func(t *testing.T) {
		entry, err := NewTiered(down, &spyStrategy{err: errBackendDown}, policy, zerolog.Nop()).Get(ctx, "user1", "AAPL")
		assert.ErrorIs(t, err, errBackendDown)
		assert.Nil(t, entry)
	})
}

func TestTiered_Set(t *testing.T) {
	ctx := context.Background()
	policy := staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewFakeClockAt(testNow), zerolog.Nop())

	t.Run("writes both tiers", func(t *testing.T) {
		tiered, localStore, remoteStore := newTestTiered(t)
		id, err := tiered.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(0, day))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		for _, store := range []Strategy{localStore, remoteStore} {
			entry, err := store.Get(ctx, "user1", "AAPL")
			require.NoError(t, err)
			assert.NotNil(t, entry, store.Name())
		}
	})

	t.Run("one tier failing is tolerated", func(t *testing.T) {
		healthy := local.NewStore(local.NewMemoryStorage(), policy, 0, zerolog.Nop())
		tiered := NewTiered(healthy, &spyStrategy{err: errBackendDown}, policy, zerolog.Nop())

		_, err := tiered.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(0, day))
		assert.NoError(t, err)
	})

	t.Run("both tiers failing is an error", func(t *testing.T) {
		tiered := NewTiered(&spyStrategy{err: errBackendDown}, &spyStrategy{err: errBackendDown}, policy, zerolog.Nop())

		_, err := tiered.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(0, day))
		assert.ErrorIs(t, err, errBackendDown)
	})
}

func TestTiered_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)
	_, err := localStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(0, day))
	require.NoError(t, err)
	for _, symbol := range []string{"AAPL", "MSFT", "NVDA"} {
		_, err := remoteStore.Set(ctx, "user1", symbol, testRecord(symbol), metadata(0, day))
		require.NoError(t, err)
	}

	removed, err := tiered.Remove(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = tiered.Remove(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.False(t, removed)

	count, err := tiered.Clear(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	symbols, err := tiered.GetCachedSymbols(ctx, "user1")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestTiered_ListingAndStatistics(t *testing.T) {
	ctx := context.Background()
	tiered, localStore, remoteStore := newTestTiered(t)
	_, err := localStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(time.Hour, 23*time.Hour))
	require.NoError(t, err)
	_, err = remoteStore.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(time.Hour, 23*time.Hour))
	require.NoError(t, err)
	_, err = remoteStore.Set(ctx, "user1", "MSFT", testRecord("MSFT"), metadata(3*time.Hour, -time.Hour))
	require.NoError(t, err)

	symbols, err := tiered.GetCachedSymbols(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	fresh, err := tiered.IsFresh(ctx, "user1", "MSFT")
	require.NoError(t, err)
	assert.False(t, fresh)

	// IsFresh does not promote
	entry, err := localStore.Get(ctx, "user1", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, entry)

	stats, err := tiered.GetStatistics(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
	assert.Equal(t, "AAPL", stats.NewestEntry)
	assert.Equal(t, "MSFT", stats.OldestEntry)
	assert.Equal(t, 2*time.Hour, stats.AverageAge)
}

func TestNoopStrategy(t *testing.T) {
	ctx := context.Background()
	var s NoopStrategy

	id, err := s.Set(ctx, "user1", "AAPL", testRecord("AAPL"), metadata(0, day))
	require.NoError(t, err)
	assert.Empty(t, id)

	entry, err := s.Get(ctx, "user1", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, entry)

	symbols, err := s.GetCachedSymbols(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, symbols)
	assert.Equal(t, "none", s.Name())
}
