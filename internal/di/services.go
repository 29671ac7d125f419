// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/clients/alphavantage"
	"github.com/aristath/fincache/internal/compression"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/metrics"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/aristath/fincache/internal/storage/local"
	"github.com/aristath/fincache/internal/storage/remote"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const (
	redisPingTimeout = 5 * time.Second
	userScanTimeout  = 10 * time.Second
)

// InitializeServices creates the storage tiers, the fetch client and the
// cache service.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Policy = staleness.NewPolicy(staleness.DefaultConfig(), clockwork.NewRealClock(), log)

	// Local tier
	var localStorage local.Storage = local.NewMemoryStorage()
	if container.ClientDataRepo != nil {
		localStorage = container.ClientDataRepo
	}
	container.LocalStore = local.NewStore(localStorage, container.Policy, cfg.Cache.MaxCacheSize, log)

	// Remote tier
	client, err := newDocumentClient(container, cfg, log)
	if err != nil {
		return err
	}
	var remoteStrategy cache.Strategy
	if client != nil {
		store, err := remote.NewStore(client, container.Policy, log)
		if err != nil {
			return fmt.Errorf("failed to create remote store: %w", err)
		}
		container.RemoteStore = store
		remoteStrategy = store
	}

	// Fetch client
	if cfg.AlphaVantage.APIKey == "" {
		log.Warn().Msg("ALPHAVANTAGE_API_KEY is not set, upstream fetches will be rejected")
	}
	avConfig := alphavantage.DefaultConfig(cfg.AlphaVantage.APIKey)
	avConfig.DailyLimit = cfg.AlphaVantage.DailyLimit
	avConfig.RequestsPerMinute = cfg.AlphaVantage.RequestsPerMinute
	container.AlphaVantageClient = alphavantage.NewClientWithConfig(avConfig, log)

	container.CompressionEngine = compression.NewEngine(compression.DefaultConfig(), log)

	service, err := cache.NewService(
		cfg.Cache,
		container.LocalStore,
		remoteStrategy,
		container.AlphaVantageClient,
		container.CompressionEngine,
		staleness.NewDetector(),
		container.Policy,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create cache service: %w", err)
	}
	container.CacheService = service

	// Metrics
	container.Registry = prometheus.NewRegistry()
	container.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.Metrics = metrics.New(container.Registry)
	container.CacheService.SetMetrics(container.Metrics)

	// Scheduled refreshes cover users stored before this start
	scanCtx, cancel := context.WithTimeout(context.Background(), userScanTimeout)
	users, err := service.LoadActiveUsers(scanCtx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load users from storage, refresh starts with known users only")
	}

	log.Info().
		Int("active_users", users).
		Bool("remote", container.RemoteStore != nil).
		Str("remote_backend", cfg.RemoteBackend).
		Msg("Services initialized")
	return nil
}

// newDocumentClient builds the client for the configured remote backend, or
// nil when the remote tier is disabled.
func newDocumentClient(container *Container, cfg *config.Config, log zerolog.Logger) (remote.DocumentClient, error) {
	switch cfg.RemoteBackend {
	case config.RemoteNone:
		return nil, nil
	case config.RemoteMemory:
		return remote.NewMemoryClient(), nil
	case config.RemoteS3:
		client, err := remote.NewS3Client(context.Background(), cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return client, nil
	case config.RemoteRedis:
		client := remote.NewRedisClient(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			// Remote failures degrade to local-only reads, so start anyway.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable at startup")
		}
		container.RedisClient = client
		return client, nil
	}
	return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
}
