package scheduler

import (
	"time"

	"github.com/aristath/fincache/internal/database"
	"github.com/aristath/fincache/internal/utils"
	"github.com/rs/zerolog"
)

// WALCheckpointJob truncates the local cache database's write-ahead log.
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint
func (j *WALCheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}
	defer utils.OperationTimer("wal_checkpoint", j.log, 10*time.Second)()

	before, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats")
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	if before != nil && before.WALSizeBytes > 0 {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int64("wal_bytes_before", before.WALSizeBytes).
			Msg("WAL checkpoint completed")
	}
	return nil
}
