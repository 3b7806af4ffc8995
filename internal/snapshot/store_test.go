package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
)

type failingCache struct{ err error }

func (c failingCache) Get(context.Context, string) (string, bool, error) { return "", false, c.err }
func (c failingCache) Set(context.Context, string, string, time.Duration) error {
	return c.err
}

func TestStore_ScalarTotals(t *testing.T) {
	cache := NewMemoryCache()
	store := NewStore(cache)
	ctx := context.Background()

	_, ok, err := store.ScalarTotals(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetScalarTotals(ctx, "1001", models.ScalarTotals{WinRate: 56.25, TotalRound: 16}))

	totals, ok, err := store.ScalarTotals(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ScalarTotals{WinRate: 56.25, TotalRound: 16}, totals)

	raw, ok, err := cache.Get(ctx, "gcg:totalRound:1001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "16", raw)

	_, ok, err = store.ScalarTotals(ctx, "1002")
	require.NoError(t, err)
	assert.False(t, ok, "users are isolated")
}

func TestStore_ScalarTotalsNeverExpire(t *testing.T) {
	clock := newTestClock()
	store := NewStore(NewMemoryCacheWithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.SetScalarTotals(ctx, "1", models.ScalarTotals{WinRate: 50, TotalRound: 4}))
	clock.Advance(365 * 24 * time.Hour)

	_, ok, err := store.ScalarTotals(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ScalarTotalsPartial(t *testing.T) {
	cache := NewMemoryCache()
	store := NewStore(cache)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "gcg:totalRound:7", "12", 0))

	totals, ok, err := store.ScalarTotals(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ScalarTotals{TotalRound: 12}, totals)
}

func TestStore_ScalarTotalsCorruptReadsAsAbsent(t *testing.T) {
	cache := NewMemoryCache()
	store := NewStore(cache, WithLogger(logger.Nop()))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "gcg:winRate:7", "not-a-number", 0))
	_, ok, err := store.ScalarTotals(ctx, "7")
	require.NoError(t, err)
	assert.False(t, ok)

	// The readable key still counts.
	require.NoError(t, cache.Set(ctx, "gcg:totalRound:7", "12", 0))
	totals, ok, err := store.ScalarTotals(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ScalarTotals{TotalRound: 12}, totals)

	// The next write replaces the bad value.
	require.NoError(t, store.SetScalarTotals(ctx, "7", models.ScalarTotals{WinRate: 50, TotalRound: 14}))
	totals, ok, err = store.ScalarTotals(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ScalarTotals{WinRate: 50, TotalRound: 14}, totals)
}

func TestStore_CardSnapshotRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryCache(), WithKeyPrefix("test"))
	ctx := context.Background()

	_, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	cards := []models.NormalizedCard{
		{CardID: 1, CardName: "A", UseCount: 10, Proficiency: 8, WinRate: 80, UsageRate: 250},
		{CardID: 2, CardName: "B", UseCount: 2, Proficiency: 1, WinRate: 50, UsageRate: 50},
	}
	require.NoError(t, store.SetCardSnapshot(ctx, "1", cards))

	got, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cards, got, "order is preserved")
}

func TestStore_EmptyCardSnapshotIsABaseline(t *testing.T) {
	store := NewStore(NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, store.SetCardSnapshot(ctx, "1", nil))

	got, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestStore_CardSnapshotExpires(t *testing.T) {
	clock := newTestClock()
	store := NewStore(NewMemoryCacheWithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.SetCardSnapshot(ctx, "1", []models.NormalizedCard{{CardID: 1}}))

	clock.Advance(DefaultCardTTL - time.Second)
	_, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, err = store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CustomCardTTL(t *testing.T) {
	clock := newTestClock()
	store := NewStore(NewMemoryCacheWithClock(clock.Now), WithCardTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, store.SetCardSnapshot(ctx, "1", []models.NormalizedCard{{CardID: 1}}))
	clock.Advance(time.Hour)

	_, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptCardSnapshotReadsAsAbsent(t *testing.T) {
	cache := NewMemoryCache()
	store := NewStore(cache, WithLogger(logger.Nop()))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "gcg:avatarCardResult:1", "{broken", 0))
	cards, ok, err := store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, cards)

	want := []models.NormalizedCard{{CardName: "Diluc", UseCount: 3, Proficiency: 2}}
	require.NoError(t, store.SetCardSnapshot(ctx, "1", want))
	cards, ok, err = store.CardSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, cards)
}

func TestStore_CacheErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store := NewStore(failingCache{err: boom})
	ctx := context.Background()

	_, _, err := store.ScalarTotals(ctx, "1")
	assert.ErrorIs(t, err, boom)
	_, _, err = store.CardSnapshot(ctx, "1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.SetScalarTotals(ctx, "1", models.ScalarTotals{}), boom)
	assert.ErrorIs(t, store.SetCardSnapshot(ctx, "1", nil), boom)
}
