// Package clientdata provides SQLite persistence for the local cache tier.
// Values are opaque byte blobs keyed by string; the local store owns the
// encoding and the key layout.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema creates the local cache table. Safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS local_cache (
	cache_key  TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	size_bytes INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_local_cache_updated ON local_cache(updated_at);
`

// Repository is a key-value area backed by the local_cache table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetItem returns the value stored under key.
// Returns nil, false, nil if the key doesn't exist.
func (r *Repository) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM local_cache WHERE cache_key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem stores value under key, replacing any previous value.
func (r *Repository) SetItem(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO local_cache (cache_key, value, size_bytes, updated_at) VALUES (?, ?, ?, ?)",
		key, value, len(value), r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (r *Repository) RemoveItem(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM local_cache WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every key starting with prefix, in key order.
func (r *Repository) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT cache_key FROM local_cache WHERE substr(cache_key, 1, length(?)) = ? ORDER BY cache_key",
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Size returns the total number of value bytes stored.
func (r *Repository) Size(ctx context.Context) (int64, error) {
	var size int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM local_cache",
	).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum sizes: %w", err)
	}
	return size, nil
}

// DeleteOlderThan removes all rows last written before cutoff.
// Returns the number of rows deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM local_cache WHERE updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
