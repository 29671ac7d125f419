// Package testing provides test helpers shared across fincache packages.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aristath/fincache/internal/database"
)

// NewTestDB creates a file-backed SQLite database under t.TempDir() and
// applies the given schemas. The database is closed when the test ends.
func NewTestDB(t *testing.T, name string, schemas ...string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileCache,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(schemas...); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// GetRawConnection returns the underlying connection for direct queries
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
