package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Runs longer than slow are logged at warn level; a zero slow disables the
// warning.
//
// Usage:
//
//	defer utils.OperationTimer("wal_checkpoint", log, 10*time.Second)()
func OperationTimer(operation string, log zerolog.Logger, slow time.Duration) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if slow > 0 && duration > slow {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Dur("threshold", slow).
				Msg("Slow operation detected")
		}
		return duration
	}
}
