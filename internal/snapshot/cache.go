// Package snapshot persists the per-user statistics snapshots that report
// deltas are computed against.
package snapshot

import (
	"context"
	"sync"
	"time"
)

// Cache is a string key/value store with optional per-entry expiry.
type Cache interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites key. A ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// BatchSetter is implemented by caches that can write several keys
// atomically.
type BatchSetter interface {
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Entries are lost on restart.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock creates an in-process cache reading the current
// time from now.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// SetMany implements BatchSetter.
func (c *MemoryCache) SetMany(_ context.Context, entries map[string]string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	for key, value := range entries {
		c.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
