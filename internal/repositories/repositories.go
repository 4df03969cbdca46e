// package repositories provides the SQLite persistence used by the command line clients.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned when a key has never been written or has been removed.
var ErrKeyNotFound = errors.New("key not found")

// Entry is a single stored key with its last write time.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// StorageRepository is a string key/value store over the local_storage table.
type StorageRepository struct {
	db *sql.DB
}

// NewStorageRepository creates a new [StorageRepository] with the given database connection
func NewStorageRepository(db *sql.DB) *StorageRepository {
	return &StorageRepository{db: db}
}

// Get retrieves the value stored under key
func (r *StorageRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query key: %w", err)
	}
	return value, nil
}

// Set writes value under key. Concurrent writers do not merge: the last write wins.
func (r *StorageRepository) Set(key, value string) error {
	query := `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (r *StorageRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// List returns every stored entry ordered by key
func (r *StorageRepository) List() ([]Entry, error) {
	rows, err := r.db.Query(`SELECT key, value, updated_at FROM local_storage ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
