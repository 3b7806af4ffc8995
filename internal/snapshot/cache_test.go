package snapshot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/GCG-Companion/internal/storage"
	"github.com/ramonehamilton/GCG-Companion/internal/storage/repository"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

// exerciseCache runs the shared Cache contract against c. advance moves the
// cache's notion of time forward.
func exerciseCache(t *testing.T, c Cache, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "plain", "v1", 0))
	require.NoError(t, c.Set(ctx, "plain", "v2", 0))
	value, ok, err := c.Get(ctx, "plain")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value, "set overwrites")

	require.NoError(t, c.Set(ctx, "expiring", "x", time.Hour))
	advance(30 * time.Minute)
	_, ok, err = c.Get(ctx, "expiring")
	require.NoError(t, err)
	assert.True(t, ok)

	advance(31 * time.Minute)
	_, ok, err = c.Get(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, ok, "entry past its ttl reads as absent")

	_, ok, err = c.Get(ctx, "plain")
	require.NoError(t, err)
	assert.True(t, ok, "entries without ttl never expire")

	batch, ok := c.(BatchSetter)
	require.True(t, ok, "%T should support batch writes", c)
	require.NoError(t, batch.SetMany(ctx, map[string]string{"b1": "1", "b2": "2"}, 0))
	for key, want := range map[string]string{"b1": "1", "b2": "2"} {
		value, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
		assert.Equal(t, want, value, key)
	}
}

func TestMemoryCache(t *testing.T) {
	clock := newTestClock()
	exerciseCache(t, NewMemoryCacheWithClock(clock.Now), clock.Advance)
}

func TestMemoryCache_ExpiredEntryIsDropped(t *testing.T) {
	clock := newTestClock()
	c := NewMemoryCacheWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, 1, c.Len())

	clock.Advance(time.Minute)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSQLiteCache(t *testing.T) {
	config := storage.DefaultConfig(storage.MemoryPath)
	config.AutoMigrate = true
	db, err := storage.Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := newTestClock()
	c := NewSQLiteCache(repository.NewCacheRepositoryWithClock(db.Conn(), clock.Now))
	exerciseCache(t, c, clock.Advance)
}

// TestRedisCache runs against a live server when GCG_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("GCG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GCG_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	key := "gcg-test:" + time.Now().Format("150405.000000000")
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, "v", time.Minute))
	value, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisOptions{})
	assert.Error(t, err)
}
