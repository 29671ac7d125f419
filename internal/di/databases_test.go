package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/fincache/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDatabases(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir:      tmpDir,
		LocalStorage: config.LocalSQLite,
	}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	defer container.Close()

	assert.NotNil(t, container.LocalDB)
	assert.NotNil(t, container.ClientDataRepo)
	assert.FileExists(t, cfg.LocalDatabasePath())
	assert.NoError(t, container.LocalDB.HealthCheck(context.Background()))
}

func TestInitializeDatabases_MemoryStorage(t *testing.T) {
	cfg := &config.Config{
		DataDir:      t.TempDir(),
		LocalStorage: config.LocalMemory,
	}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, container.LocalDB)
	assert.Nil(t, container.ClientDataRepo)
	assert.NoFileExists(t, cfg.LocalDatabasePath())
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	// A regular file where the data directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg := &config.Config{
		DataDir:      filepath.Join(blocker, "data"),
		LocalStorage: config.LocalSQLite,
	}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container)
}
