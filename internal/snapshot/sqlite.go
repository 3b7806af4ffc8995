package snapshot

import (
	"context"
	"time"

	"github.com/ramonehamilton/GCG-Companion/internal/storage/repository"
)

// SQLiteCache is a Cache over the storage cache repository.
type SQLiteCache struct {
	repo repository.CacheRepository
}

// NewSQLiteCache creates a cache writing through repo.
func NewSQLiteCache(repo repository.CacheRepository) *SQLiteCache {
	return &SQLiteCache{repo: repo}
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.repo.Get(ctx, key)
}

// Set implements Cache.
func (c *SQLiteCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.repo.Set(ctx, key, value, ttl)
}

// SetMany implements BatchSetter.
func (c *SQLiteCache) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	return c.repo.SetMany(ctx, entries, ttl)
}
