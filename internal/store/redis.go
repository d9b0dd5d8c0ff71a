package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seatflow/position-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache for
// derived-history reads. The cache is explicitly owned and passed by
// reference — no package-level state.
//
// Invalidation is versioned: every derived-day replacement bumps a
// per-commodity version counter, and read keys embed the current version,
// so stale entries become unreachable immediately and expire via TTL.
// Raw-table reads and writes pass straight through; every raw rewrite is
// followed by a derived replacement, which is where the bump happens.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Pass-through raw operations ---

func (s *CachedStore) UpsertMarketRecords(ctx context.Context, records []model.MarketRecord) error {
	return s.primary.UpsertMarketRecords(ctx, records)
}

func (s *CachedStore) UpsertSeatHoldings(ctx context.Context, holdings []model.RawSeatHolding) error {
	return s.primary.UpsertSeatHoldings(ctx, holdings)
}

func (s *CachedStore) MarketRecordsByDate(ctx context.Context, date time.Time) ([]model.MarketRecord, error) {
	return s.primary.MarketRecordsByDate(ctx, date)
}

func (s *CachedStore) SeatHoldingsByDate(ctx context.Context, date time.Time) ([]model.RawSeatHolding, error) {
	return s.primary.SeatHoldingsByDate(ctx, date)
}

// --- Writes (replace on primary, bump affected commodity versions) ---

func (s *CachedStore) ReplaceWeightedContracts(ctx context.Context, date time.Time, rows []model.WeightedContract) error {
	if err := s.primary.ReplaceWeightedContracts(ctx, date, rows); err != nil {
		return err
	}
	for _, name := range distinct(rows, func(w model.WeightedContract) string { return w.Commodity }) {
		s.bump(ctx, name)
	}
	return nil
}

func (s *CachedStore) ReplaceSeatSummaries(ctx context.Context, date time.Time, rows []model.SeatSummary) error {
	if err := s.primary.ReplaceSeatSummaries(ctx, date, rows); err != nil {
		return err
	}
	for _, name := range distinct(rows, func(r model.SeatSummary) string { return r.Commodity }) {
		s.bump(ctx, name)
	}
	return nil
}

func (s *CachedStore) ReplaceIndicators(ctx context.Context, date time.Time, rows []model.IndicatorSnapshot) error {
	if err := s.primary.ReplaceIndicators(ctx, date, rows); err != nil {
		return err
	}
	for _, name := range distinct(rows, func(r model.IndicatorSnapshot) string { return r.Commodity }) {
		s.bump(ctx, name)
	}
	return nil
}

// --- Cached derived reads ---

func (s *CachedStore) WeightedHistory(ctx context.Context, commodity string, limit int) ([]model.WeightedContract, error) {
	key := s.key(ctx, commodity, fmt.Sprintf("wc:%d", limit))
	return readThrough(ctx, s, key, func() ([]model.WeightedContract, error) {
		return s.primary.WeightedHistory(ctx, commodity, limit)
	})
}

func (s *CachedStore) SeatSummariesByDay(ctx context.Context, date time.Time, commodity string) ([]model.SeatSummary, error) {
	key := s.key(ctx, commodity, "day:"+model.DayKey(date))
	return readThrough(ctx, s, key, func() ([]model.SeatSummary, error) {
		return s.primary.SeatSummariesByDay(ctx, date, commodity)
	})
}

func (s *CachedStore) SeatHistory(ctx context.Context, commodity, seat string, limit int) ([]model.SeatSummary, error) {
	key := s.key(ctx, commodity, fmt.Sprintf("seat:%s:%d", seat, limit))
	return readThrough(ctx, s, key, func() ([]model.SeatSummary, error) {
		return s.primary.SeatHistory(ctx, commodity, seat, limit)
	})
}

func (s *CachedStore) IndicatorHistory(ctx context.Context, commodity string, breadth model.Breadth, limit int) ([]model.IndicatorSnapshot, error) {
	key := s.key(ctx, commodity, fmt.Sprintf("ind:%s:%d", breadth, limit))
	return readThrough(ctx, s, key, func() ([]model.IndicatorSnapshot, error) {
		return s.primary.IndicatorHistory(ctx, commodity, breadth, limit)
	})
}

func (s *CachedStore) Commodities(ctx context.Context) ([]string, error) {
	return s.primary.Commodities(ctx)
}

// --- Cache plumbing ---

func versionKey(commodity string) string {
	return "seatflow:ver:" + commodity
}

func (s *CachedStore) bump(ctx context.Context, commodity string) {
	// Best-effort: a failed bump only means a short window of stale reads
	// bounded by the TTL.
	s.rdb.Incr(ctx, versionKey(commodity))
}

// key builds a versioned cache key for a commodity-scoped read.
func (s *CachedStore) key(ctx context.Context, commodity, suffix string) string {
	ver, err := s.rdb.Get(ctx, versionKey(commodity)).Int64()
	if err != nil {
		ver = 0
	}
	return fmt.Sprintf("seatflow:%s:v%d:%s", commodity, ver, suffix)
}

// readThrough returns the cached rows for key, falling back to load() and
// caching its result. Cache failures degrade to the primary store.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func() ([]T, error)) ([]T, error) {
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var rows []T
		if json.Unmarshal(data, &rows) == nil {
			return rows, nil
		}
	}

	rows, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return rows, nil
}

func distinct[T any](rows []T, name func(T) string) []string {
	seen := make(map[string]bool, len(rows))
	var names []string
	for _, r := range rows {
		n := name(r)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}
