package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
)

const (
	// DefaultKeyPrefix namespaces every key written by the store.
	DefaultKeyPrefix = "gcg"

	// DefaultCardTTL bounds how old a card snapshot may be before deltas
	// stop being computed against it.
	DefaultCardTTL = 30 * 24 * time.Hour
)

// Store reads and writes per-user snapshots through a Cache.
//
// Scalar totals live under two keys that never expire. The card snapshot is
// a JSON array under a third key with a TTL. Writes overwrite; concurrent
// writers for the same user are last-write-wins. Values that no longer parse
// read as absent so the next write replaces them.
type Store struct {
	cache   Cache
	prefix  string
	cardTTL time.Duration
	log     *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithCardTTL sets the card snapshot expiry.
func WithCardTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.cardTTL = ttl
		}
	}
}

// WithLogger sets the logger used to report unreadable snapshots.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates a store over cache.
func NewStore(cache Cache, opts ...Option) *Store {
	s := &Store{
		cache:   cache,
		prefix:  DefaultKeyPrefix,
		cardTTL: DefaultCardTTL,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) winRateKey(uid string) string    { return s.prefix + ":winRate:" + uid }
func (s *Store) totalRoundKey(uid string) string { return s.prefix + ":totalRound:" + uid }
func (s *Store) cardsKey(uid string) string      { return s.prefix + ":avatarCardResult:" + uid }

// ScalarTotals returns the stored totals for uid. ok is false when neither
// key holds a usable value; a single missing key reads as zero.
func (s *Store) ScalarTotals(ctx context.Context, uid string) (models.ScalarTotals, bool, error) {
	var totals models.ScalarTotals

	rawRate, rateOK, err := s.cache.Get(ctx, s.winRateKey(uid))
	if err != nil {
		return totals, false, fmt.Errorf("get win rate: %w", err)
	}
	rawRound, roundOK, err := s.cache.Get(ctx, s.totalRoundKey(uid))
	if err != nil {
		return totals, false, fmt.Errorf("get total round: %w", err)
	}

	if rateOK {
		if totals.WinRate, err = strconv.ParseFloat(rawRate, 64); err != nil {
			s.log.Warn("ignoring unreadable win rate", "uid", uid, "value", rawRate, "error", err)
			totals.WinRate, rateOK = 0, false
		}
	}
	if roundOK {
		if totals.TotalRound, err = strconv.Atoi(rawRound); err != nil {
			s.log.Warn("ignoring unreadable total round", "uid", uid, "value", rawRound, "error", err)
			totals.TotalRound, roundOK = 0, false
		}
	}
	return totals, rateOK || roundOK, nil
}

// SetScalarTotals overwrites the stored totals for uid without expiry. Both
// keys are written atomically when the cache supports it.
func (s *Store) SetScalarTotals(ctx context.Context, uid string, totals models.ScalarTotals) error {
	rate := strconv.FormatFloat(totals.WinRate, 'f', -1, 64)
	rounds := strconv.Itoa(totals.TotalRound)

	if batch, ok := s.cache.(BatchSetter); ok {
		err := batch.SetMany(ctx, map[string]string{
			s.winRateKey(uid):    rate,
			s.totalRoundKey(uid): rounds,
		}, 0)
		if err != nil {
			return fmt.Errorf("set scalar totals: %w", err)
		}
		return nil
	}

	if err := s.cache.Set(ctx, s.winRateKey(uid), rate, 0); err != nil {
		return fmt.Errorf("set win rate: %w", err)
	}
	if err := s.cache.Set(ctx, s.totalRoundKey(uid), rounds, 0); err != nil {
		return fmt.Errorf("set total round: %w", err)
	}
	return nil
}

// CardSnapshot returns the stored card snapshot for uid in stored order.
// ok is false when nothing is stored, the snapshot expired or it no longer
// decodes.
func (s *Store) CardSnapshot(ctx context.Context, uid string) ([]models.NormalizedCard, bool, error) {
	raw, ok, err := s.cache.Get(ctx, s.cardsKey(uid))
	if err != nil {
		return nil, false, fmt.Errorf("get card snapshot: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var cards []models.NormalizedCard
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		s.log.Warn("ignoring unreadable card snapshot", "uid", uid, "error", err)
		return nil, false, nil
	}
	if cards == nil {
		cards = []models.NormalizedCard{}
	}
	return cards, true, nil
}

// SetCardSnapshot overwrites the card snapshot for uid and resets its expiry.
func (s *Store) SetCardSnapshot(ctx context.Context, uid string, cards []models.NormalizedCard) error {
	if cards == nil {
		cards = []models.NormalizedCard{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encode card snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, s.cardsKey(uid), string(data), s.cardTTL); err != nil {
		return fmt.Errorf("set card snapshot: %w", err)
	}
	return nil
}
