// Package repository holds the SQL repositories over the storage database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/GCG-Companion/internal/storage"
)

// CacheRepository provides access to expiring key/value entries.
type CacheRepository interface {
	// Get retrieves the value stored under key.
	// ok is false when the key is absent or its entry has expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous entry.
	// A ttl <= 0 stores the entry without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetMany stores every entry in one transaction with the same ttl.
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PurgeExpired removes every expired entry and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// cacheRepository implements CacheRepository using SQLite.
type cacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCacheRepository creates a new cache repository.
func NewCacheRepository(db *sql.DB) CacheRepository {
	return NewCacheRepositoryWithClock(db, time.Now)
}

// NewCacheRepositoryWithClock creates a cache repository that reads the
// current time from now.
func NewCacheRepositoryWithClock(db *sql.DB, now func() time.Time) CacheRepository {
	return &cacheRepository{db: db, now: now}
}

// Get retrieves a value by key. Expired entries read as absent and are
// left for PurgeExpired.
func (r *cacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= r.now().UnixMilli() {
		return "", false, nil
	}
	return value, true, nil
}

const upsertEntry = `
	INSERT INTO cache_entries (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at
`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *cacheRepository) upsert(ctx context.Context, exec execer, now time.Time, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}
	if _, err := exec.ExecContext(ctx, upsertEntry, key, value, expiresAt, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to set cache entry %s: %w", key, err)
	}
	return nil
}

// Set stores a value with an optional TTL.
func (r *cacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.upsert(ctx, r.db, r.now(), key, value, ttl)
}

// SetMany stores several values atomically.
func (r *cacheRepository) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	now := r.now()
	return storage.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		for key, value := range entries {
			if err := r.upsert(ctx, tx, now, key, value, ttl); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes an entry.
func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes expired entries.
func (r *cacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?",
		r.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged cache entries: %w", err)
	}
	return n, nil
}
