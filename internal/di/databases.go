// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/fincache/internal/clientdata"
	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the local cache database and applies its schema.
// With LOCAL_STORAGE=memory no database is opened.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	if cfg.LocalStorage != config.LocalSQLite {
		log.Info().Str("local_storage", cfg.LocalStorage).Msg("Local cache kept in memory, no database opened")
		return container, nil
	}

	// local_cache.db - cache entries keyed by (user, symbol). Ephemeral data,
	// so the cache profile trades durability for write speed.
	localDB, err := database.New(database.Config{
		Path:    cfg.LocalDatabasePath(),
		Profile: database.ProfileCache,
		Name:    "local_cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local cache database: %w", err)
	}

	if err := localDB.Migrate(clientdata.Schema); err != nil {
		localDB.Close()
		return nil, fmt.Errorf("failed to apply local cache schema: %w", err)
	}
	container.LocalDB = localDB
	container.ClientDataRepo = clientdata.NewRepository(localDB.Conn())

	log.Info().Str("path", localDB.Path()).Msg("Local cache database initialized")
	return container, nil
}
