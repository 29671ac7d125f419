package scheduler

import (
	"context"
	"time"

	"github.com/aristath/fincache/internal/cache"
	"github.com/aristath/fincache/internal/utils"
	"github.com/rs/zerolog"
)

// CacheRefresher is the part of the cache service the refresh job drives.
type CacheRefresher interface {
	ActiveUsers() []string
	RefreshCacheInBackground(ctx context.Context, userID string) cache.BatchReport
}

// RefreshJob refetches stale entries for every user the service has seen.
type RefreshJob struct {
	service CacheRefresher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates a refresh job. A zero timeout means each run is
// unbounded.
func NewRefreshJob(service CacheRefresher, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "cache_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "cache_refresh"
}

// Run refreshes each active user in turn. Per-symbol failures are reported,
// not returned.
func (j *RefreshJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	users := j.service.ActiveUsers()
	if len(users) == 0 {
		j.log.Debug().Msg("No active users, nothing to refresh")
		return nil
	}

	elapsed := utils.OperationTimer("cache_refresh", j.log, j.timeout/2)
	var refreshed, skipped, failed int
	for _, user := range users {
		if ctx.Err() != nil {
			j.log.Warn().Err(ctx.Err()).Str("user_id", user).Msg("Refresh run cut short")
			break
		}

		report := j.service.RefreshCacheInBackground(ctx, user)
		refreshed += len(report.Refreshed)
		skipped += len(report.Skipped)
		failed += len(report.Failed)

		if len(report.Failed) > 0 {
			j.log.Warn().
				Str("user_id", user).
				Strs("failed", report.Failed).
				Msg("Some symbols failed to refresh")
		}
	}

	j.log.Info().
		Int("users", len(users)).
		Int("refreshed", refreshed).
		Int("skipped", skipped).
		Int("failed", failed).
		Dur("duration", elapsed()).
		Msg("Cache refresh completed")

	return nil
}
