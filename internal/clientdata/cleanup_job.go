package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes local cache rows older than the cache's max age. Such
// rows can no longer be served, not even as a fallback.
type CleanupJob struct {
	repo   *Repository
	maxAge func() time.Duration
	log    zerolog.Logger
}

// NewCleanupJob creates a new cleanup job. maxAge is read on every run so
// configuration updates apply without rescheduling.
func NewCleanupJob(repo *Repository, maxAge func() time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:   repo,
		maxAge: maxAge,
		log:    log.With().Str("job", "local_cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	maxAge := j.maxAge()
	if maxAge <= 0 {
		return nil
	}

	cutoff := j.repo.now().Add(-maxAge)
	deleted, err := j.repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete old local cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Local cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "local_cache_cleanup"
}
