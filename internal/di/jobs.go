// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/aristath/fincache/internal/clientdata"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/scheduler"
	"github.com/rs/zerolog"
)

// refreshJobTimeout bounds one pass of the background refresh job.
const refreshJobTimeout = 20 * time.Minute

// RegisterJobs creates the background jobs and adds them to the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.CacheService == nil {
		return nil, fmt.Errorf("cache service must be initialized before jobs")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: refresh every tracked user's stale entries
	instances.CacheRefresh = scheduler.NewRefreshJob(container.CacheService, refreshJobTimeout, log)
	if err := container.Scheduler.AddJob(cfg.RefreshSchedule, instances.CacheRefresh); err != nil {
		return nil, fmt.Errorf("failed to register cache refresh job: %w", err)
	}

	// Jobs 2 and 3 only apply to the SQLite local tier
	if container.ClientDataRepo != nil {
		service := container.CacheService
		instances.LocalCleanup = clientdata.NewCleanupJob(container.ClientDataRepo, func() time.Duration {
			return service.Configuration().MaxAge
		}, log)
		if err := container.Scheduler.AddJob(cfg.PurgeSchedule, instances.LocalCleanup); err != nil {
			return nil, fmt.Errorf("failed to register local cleanup job: %w", err)
		}
	}

	if container.LocalDB != nil {
		instances.WALCheckpoint = scheduler.NewWALCheckpointJob(container.LocalDB, log)
		if err := container.Scheduler.AddJob(cfg.WALSchedule, instances.WALCheckpoint); err != nil {
			return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
		}
	}

	log.Info().Int("jobs", container.Scheduler.Len()).Msg("Jobs registered")
	return instances, nil
}
