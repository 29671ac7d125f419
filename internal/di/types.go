/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is created by Wire() and shared by the HTTP server, the
 * command-line client and the scheduler.
 */
package di

import (
	"time"

	"github.com/aristath/fincache/internal/clientdata"
	"github.com/aristath/fincache/internal/clients/alphavantage"
	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/compression"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/database"
	"github.com/aristath/fincache/internal/metrics"
	"github.com/aristath/fincache/internal/scheduler"
	"github.com/aristath/fincache/internal/staleness"
	"github.com/aristath/fincache/internal/storage/local"
	"github.com/aristath/fincache/internal/storage/remote"
	"github.com/prometheus/client_golang/prometheus"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: local_cache.db (only when LOCAL_STORAGE=sqlite)
 * - Storage: local store and optional remote document store
 * - Clients: Alpha Vantage fetch client
 * - Services: cache service, staleness policy, compression engine
 * - Observability: Prometheus registry and cache counters
 */
type Container struct {
	Config *config.Config

	// Databases
	LocalDB *database.DB // nil when local entries live in memory

	// Repositories
	ClientDataRepo *clientdata.Repository

	// Storage tiers
	LocalStore  *local.Store
	RemoteStore *remote.Store // nil when the remote tier is disabled
	RedisClient *remote.RedisClient

	// Clients
	AlphaVantageClient *alphavantage.Client

	// Services
	Policy            *staleness.Policy
	CompressionEngine *compression.Engine
	CacheService      *cache.Service

	// Observability
	Registry *prometheus.Registry
	Metrics  *metrics.Prometheus

	Scheduler *scheduler.Scheduler
	StartedAt time.Time
}

/**
 * JobInstances holds the scheduled jobs so they can also be triggered
 * manually. Jobs whose backing store is not configured are nil.
 */
type JobInstances struct {
	CacheRefresh  *scheduler.RefreshJob
	LocalCleanup  *clientdata.CleanupJob
	WALCheckpoint *scheduler.WALCheckpointJob
}
