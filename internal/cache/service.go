// Package cache is the facade over the financial data cache. It decides when
// stored records can be reused, fetches and stores them when they cannot, and
// runs background refresh and preload fan-outs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/fincache/internal/compression"
	"github.com/aristath/fincache/internal/domain"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads a record from the upstream data provider.
type Fetcher interface {
	FetchRecord(ctx context.Context, symbol string) (*domain.FinancialRecord, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, symbol string) (*domain.FinancialRecord, error)

// FetchRecord calls f(ctx, symbol).
func (f FetcherFunc) FetchRecord(ctx context.Context, symbol string) (*domain.FinancialRecord, error) {
	return f(ctx, symbol)
}

// GetOptions modifies a single GetData call.
type GetOptions struct {
	// ForceRefresh skips the cache read and always fetches.
	ForceRefresh bool
	// Background marks a best-effort prefetch. Fetch failures are logged at
	// debug level.
	Background bool
	// TTL overrides the configured default TTL for the stored entry.
	TTL time.Duration
}

// Result is the outcome of GetData. It never carries a panic or a bare error
// to the caller; Success and Error describe failure.
type Result struct {
	Success   bool                    `json:"success"`
	Data      *domain.FinancialRecord `json:"data,omitempty"`
	FromCache bool                    `json:"fromCache"`
	IsStale   bool                    `json:"isStale,omitempty"`
	Freshness domain.Freshness        `json:"freshness,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Err       error                   `json:"-"`
}

// Service is the cache facade.
type Service struct {
	local    Strategy
	remote   Strategy
	tiered   *Tiered
	fetcher  Fetcher
	engine   *compression.Engine
	analyzer staleness.CadenceAnalyzer
	policy   *staleness.Policy
	metrics  Metrics

	cfg    atomic.Pointer[Config]
	flight singleflight.Group

	hits    atomic.Int64
	lookups atomic.Int64

	usersMu sync.Mutex
	users   map[string]struct{}

	refreshing sync.WaitGroup
	inFlight   sync.Map // refresh-ahead keys

	log zerolog.Logger
}

// NewService creates the cache facade. local and remote may be nil when the
// tier is not available; engine and analyzer may be nil to disable
// compaction and publication hints.
func NewService(
	cfg Config,
	local Strategy,
	remote Strategy,
	fetcher Fetcher,
	engine *compression.Engine,
	analyzer staleness.CadenceAnalyzer,
	policy *staleness.Policy,
	log zerolog.Logger,
) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if policy == nil {
		return nil, errors.New("staleness policy is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	s := &Service{
		local:    local,
		remote:   remote,
		fetcher:  fetcher,
		engine:   engine,
		analyzer: analyzer,
		policy:   policy,
		metrics:  NoopMetrics{},
		users:    make(map[string]struct{}),
		log:      log.With().Str("component", "cache_service").Logger(),
	}
	if local != nil && remote != nil {
		s.tiered = NewTiered(local, remote, policy, log)
	}
	s.cfg.Store(&cfg)
	return s, nil
}

// SetMetrics installs a metrics sink. Call before serving requests.
func (s *Service) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics{}
	}
	s.metrics = m
}

// Configuration returns the current settings.
func (s *Service) Configuration() Config {
	return *s.cfg.Load()
}

// UpdateConfiguration merges patch into the live settings. An invalid result
// is rejected and the previous settings stay in effect. Stored entries are
// never touched.
func (s *Service) UpdateConfiguration(patch ConfigPatch) error {
	for {
		current := s.cfg.Load()
		next := patch.Merge(*current)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("invalid cache config: %w", err)
		}
		if !s.cfg.CompareAndSwap(current, &next) {
			continue
		}

		if next.MaxCacheSize != current.MaxCacheSize {
			for _, backend := range []Strategy{s.local, s.remote} {
				if r, ok := backend.(Resizable); ok {
					r.SetMaxSize(next.MaxCacheSize)
				}
			}
		}

		s.log.Info().
			Dur("default_ttl", next.DefaultTTL).
			Dur("max_age", next.MaxAge).
			Int64("max_cache_size", next.MaxCacheSize).
			Bool("local", next.UseLocalStorage).
			Bool("remote", next.UseRemoteStorage).
			Bool("compression", next.EnableCompression).
			Bool("background_refresh", next.EnableBackgroundRefresh).
			Msg("Cache configuration updated")
		return nil
	}
}

// strategy picks the storage for one operation from the settings snapshot.
func (s *Service) strategy(cfg Config) Strategy {
	useLocal := cfg.UseLocalStorage && s.local != nil
	useRemote := cfg.UseRemoteStorage && s.remote != nil
	switch {
	case useLocal && useRemote:
		return s.tiered
	case useLocal:
		return s.local
	case useRemote:
		return s.remote
	default:
		return NoopStrategy{}
	}
}

// everywhere is every available backend regardless of the tier switches.
// Invalidation uses it so that re-enabling a tier cannot resurrect entries.
func (s *Service) everywhere() Strategy {
	switch {
	case s.tiered != nil:
		return s.tiered
	case s.local != nil:
		return s.local
	case s.remote != nil:
		return s.remote
	default:
		return NoopStrategy{}
	}
}

// GetData returns the record for the key, from the cache when it is still
// usable and from the fetcher otherwise. When the fetch fails, a stored entry
// no older than MaxAge is returned marked stale, also on a forced refresh.
func (s *Service) GetData(ctx context.Context, userID, symbol string, opts GetOptions) Result {
	userID, symbol, err := normalizeKey(userID, symbol)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Err: err}
	}

	cfg := s.Configuration()
	store := s.strategy(cfg)
	s.trackUser(userID)

	var cached *domain.CacheEntry
	if !opts.ForceRefresh {
		s.lookups.Add(1)

		var readErr error
		cached, readErr = store.Get(ctx, userID, symbol)
		if readErr != nil {
			s.metrics.StoreError("get")
			s.log.Warn().
				Err(readErr).
				Str("user_id", userID).
				Str("symbol", symbol).
				Str("store", store.Name()).
				Msg("Cache read failed, fetching")
		}

		if cached != nil {
			freshness := s.policy.Classify(cached.Metadata)
			if freshness.Usable() {
				s.hits.Add(1)
				s.metrics.Hit()
				s.log.Debug().
					Str("user_id", userID).
					Str("symbol", symbol).
					Str("freshness", string(freshness)).
					Msg("Cache hit")

				if freshness == domain.FreshnessDue && cfg.EnableBackgroundRefresh {
					s.refreshAhead(userID, symbol)
				}
				return Result{Success: true, Data: cached.Data, FromCache: true, Freshness: freshness}
			}
		}
		s.metrics.Miss()
	}

	data, err := s.fetchAndStore(ctx, cfg, store, userID, symbol, opts)
	if err == nil {
		return Result{Success: true, Data: data, Freshness: domain.FreshnessFresh}
	}

	if opts.ForceRefresh {
		var readErr error
		if cached, readErr = store.Get(ctx, userID, symbol); readErr != nil {
			s.metrics.StoreError("get")
			s.log.Warn().
				Err(readErr).
				Str("user_id", userID).
				Str("symbol", symbol).
				Str("store", store.Name()).
				Msg("Cache read for fallback failed")
		}
	}

	if cached != nil {
		if s.policy.WithinMaxAge(cached.Metadata, cfg.MaxAge) {
			if opts.ForceRefresh {
				s.lookups.Add(1)
			}
			s.hits.Add(1)
			s.metrics.StaleServed()
			s.log.Warn().
				Err(err).
				Str("user_id", userID).
				Str("symbol", symbol).
				Time("cached_at", cached.Metadata.CachedAt).
				Msg("Fetch failed, serving stale cached data")
			return Result{
				Success:   true,
				Data:      cached.Data,
				FromCache: true,
				IsStale:   true,
				Freshness: domain.FreshnessStale,
			}
		}
		s.log.Warn().
			Str("user_id", userID).
			Str("symbol", symbol).
			Dur("max_age", cfg.MaxAge).
			Time("cached_at", cached.Metadata.CachedAt).
			Msg("Cached data exceeds max age, not serving as fallback")
	}

	return Result{Success: false, Error: err.Error(), Err: err}
}

// fetchAndStore fetches the record, stores it and returns the uncompacted
// record. Only a fetch failure is returned as an error.
func (s *Service) fetchAndStore(ctx context.Context, cfg Config, store Strategy, userID, symbol string, opts GetOptions) (*domain.FinancialRecord, error) {
	if !cfg.DeduplicateFetches {
		return s.fetchAndStoreOnce(ctx, cfg, store, userID, symbol, opts)
	}

	v, err, shared := s.flight.Do(userID+"\x00"+symbol, func() (interface{}, error) {
		return s.fetchAndStoreOnce(ctx, cfg, store, userID, symbol, opts)
	})
	if err != nil {
		return nil, err
	}
	record := v.(*domain.FinancialRecord)
	if shared {
		record = record.Clone()
	}
	return record, nil
}

func (s *Service) fetchAndStoreOnce(ctx context.Context, cfg Config, store Strategy, userID, symbol string, opts GetOptions) (*domain.FinancialRecord, error) {
	record, err := s.fetcher.FetchRecord(ctx, symbol)
	if err == nil && record == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		fetchErr := &domain.FetchError{Symbol: symbol, Err: err}
		if opts.Background {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Background fetch failed")
		} else {
			s.metrics.FetchError()
			s.log.Warn().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Fetch failed")
		}
		return nil, fetchErr
	}

	s.store(ctx, cfg, store, userID, symbol, record, opts.TTL)
	return record, nil
}

// store compacts and writes a freshly fetched record. Every failure here is
// logged and swallowed.
func (s *Service) store(ctx context.Context, cfg Config, store Strategy, userID, symbol string, record *domain.FinancialRecord, ttl time.Duration) {
	toStore := record
	if cfg.EnableCompression && s.engine != nil {
		compact, err := s.engine.SmartCompress(record)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Compression failed, storing uncompressed record")
		} else {
			toStore = compact
			if compact.Compaction != nil {
				s.metrics.Compression(compact.Compaction.Tier)
			}
		}
	}

	if ttl <= 0 {
		ttl = cfg.DefaultTTL
	}
	now := s.policy.Now()
	meta := domain.CacheMetadata{
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
		DataSource: domain.DataSourceAPI,
		Version:    domain.SchemaVersion,
	}
	s.applyPublicationHints(record, &meta)

	if _, err := store.Set(ctx, userID, symbol, toStore, meta); err != nil {
		s.metrics.StoreError("set")
		s.log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("symbol", symbol).
			Str("store", store.Name()).
			Msg("Failed to store fetched data")
	}
}

// applyPublicationHints attaches the record's filing cadence to meta. Any
// error or panic leaves meta without hints.
func (s *Service) applyPublicationHints(record *domain.FinancialRecord, meta *domain.CacheMetadata) {
	if s.analyzer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			meta.PublicationConfidence = 0
			meta.NextPublicationEstimate = nil
			meta.LastPublicationDate = nil
			s.log.Warn().
				Err(&domain.DetectionError{Err: fmt.Errorf("panic: %v", r)}).
				Str("symbol", record.Symbol).
				Msg("Publication detection panicked, using TTL only")
		}
	}()

	cadence, err := s.analyzer.AnalyzeCadence(record)
	if err != nil {
		if errors.Is(err, staleness.ErrInsufficientHistory) {
			s.log.Debug().Str("symbol", record.Symbol).Msg("Not enough filing history for publication hints")
			return
		}
		s.log.Warn().
			Err(&domain.DetectionError{Err: err}).
			Str("symbol", record.Symbol).
			Msg("Publication detection failed, using TTL only")
		return
	}
	cadence.Apply(meta)
}

// refreshAhead refreshes a key that is still usable but close to expiry.
// At most one refresh per key runs at a time.
func (s *Service) refreshAhead(userID, symbol string) {
	key := userID + "\x00" + symbol
	if _, running := s.inFlight.LoadOrStore(key, struct{}{}); running {
		return
	}

	s.refreshing.Add(1)
	go func() {
		defer s.refreshing.Done()
		defer s.inFlight.Delete(key)

		cfg := s.Configuration()
		if _, err := s.fetchAndStore(context.Background(), cfg, s.strategy(cfg), userID, symbol, GetOptions{Background: true}); err == nil {
			s.log.Debug().Str("user_id", userID).Str("symbol", symbol).Msg("Refreshed entry ahead of expiry")
		}
	}()
}

// Wait blocks until all refresh-ahead work has finished.
func (s *Service) Wait() {
	s.refreshing.Wait()
}

// InvalidateCache removes the entry for symbol, or every entry for the user
// when symbol is empty. It reports whether the backends succeeded.
func (s *Service) InvalidateCache(ctx context.Context, userID, symbol string) bool {
	userID = strings.TrimSpace(userID)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if userID == "" {
		return false
	}

	store := s.everywhere()
	if symbol == "" {
		count, err := store.Clear(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to clear user cache")
			return false
		}
		s.log.Info().Str("user_id", userID).Int("removed", count).Msg("Cleared user cache")
		return true
	}

	if _, err := store.Remove(ctx, userID, symbol); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Failed to invalidate entry")
		return false
	}
	return true
}

// IsSymbolCached reports whether a usable entry exists. It never fetches.
func (s *Service) IsSymbolCached(ctx context.Context, userID, symbol string) bool {
	userID, symbol, err := normalizeKey(userID, symbol)
	if err != nil {
		return false
	}

	fresh, err := s.strategy(s.Configuration()).IsFresh(ctx, userID, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("symbol", symbol).Msg("Freshness check failed")
		return false
	}
	return fresh
}

// GetCachedSymbols lists the user's cached symbols. Errors yield an empty
// list.
func (s *Service) GetCachedSymbols(ctx context.Context, userID string) []string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []string{}
	}

	symbols, err := s.strategy(s.Configuration()).GetCachedSymbols(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to list cached symbols")
		return []string{}
	}
	if symbols == nil {
		return []string{}
	}
	return symbols
}

// GetCacheStatistics summarizes the user's cache. HitRatio is the share of
// lookups answered from the cache since start. Errors yield zeroed
// statistics.
func (s *Service) GetCacheStatistics(ctx context.Context, userID string) domain.CacheStatistics {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CacheStatistics{}
	}

	stats, err := s.strategy(s.Configuration()).GetStatistics(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to compute cache statistics")
		return domain.CacheStatistics{}
	}
	stats.HitRatio = s.hitRatio()
	return stats
}

func (s *Service) hitRatio() float64 {
	lookups := s.lookups.Load()
	if lookups == 0 {
		return 0
	}
	return float64(s.hits.Load()) / float64(lookups)
}

// ActiveUsers returns the users seen since start or loaded from storage,
// sorted.
func (s *Service) ActiveUsers() []string {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users := make([]string, 0, len(s.users))
	for u := range s.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// LoadActiveUsers adds the users that already have stored entries to the
// active set, so scheduled refreshes cover them after a restart. It returns
// how many users are active afterwards.
func (s *Service) LoadActiveUsers(ctx context.Context) (int, error) {
	var errs []error
	for _, store := range []Strategy{s.local, s.remote} {
		lister, ok := store.(UserLister)
		if !ok {
			continue
		}
		users, err := lister.ListUsers(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, u := range users {
			s.trackUser(u)
		}
	}

	s.usersMu.Lock()
	n := len(s.users)
	s.usersMu.Unlock()
	return n, errors.Join(errs...)
}

func (s *Service) trackUser(userID string) {
	s.usersMu.Lock()
	s.users[userID] = struct{}{}
	s.usersMu.Unlock()
}

func normalizeKey(userID, symbol string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", &domain.InputValidationError{Field: "userId"}
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", "", &domain.InputValidationError{Field: "symbol"}
	}
	return userID, symbol, nil
}
