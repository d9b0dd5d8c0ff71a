// Package store defines the persistence interface for the position engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for derived history), and in-memory (for testing).
//
// Derived tables are always replaced whole for a date: readers see either
// the complete prior row set or the complete new one, never a partial mix.
// Raw tables are upserted per natural key.
package store

import (
	"context"
	"time"

	"github.com/seatflow/position-engine/internal/model"
)

// Store is the persistence interface.
type Store interface {
	// --- Raw tables (written by ingestion) ---

	// UpsertMarketRecords writes raw quotes, replacing any existing row
	// with the same (date, contract) key.
	UpsertMarketRecords(ctx context.Context, records []model.MarketRecord) error

	// UpsertSeatHoldings writes raw holdings, replacing any existing row
	// with the same (date, contract, seat) key.
	UpsertSeatHoldings(ctx context.Context, holdings []model.RawSeatHolding) error

	// MarketRecordsByDate returns the day's raw quotes in deterministic
	// (contract-ordered) order.
	MarketRecordsByDate(ctx context.Context, date time.Time) ([]model.MarketRecord, error)

	// SeatHoldingsByDate returns the day's raw holdings in deterministic
	// (contract, seat)-ordered order. Aggregator tie-breaking depends on
	// this order being stable across reads.
	SeatHoldingsByDate(ctx context.Context, date time.Time) ([]model.RawSeatHolding, error)

	// --- Derived tables (replaced whole per date) ---

	// ReplaceWeightedContracts atomically swaps the full weighted-contract
	// row set for a date.
	ReplaceWeightedContracts(ctx context.Context, date time.Time, rows []model.WeightedContract) error

	// ReplaceSeatSummaries atomically swaps the full seat-summary row set
	// for a date, preserving each commodity's ranked order.
	ReplaceSeatSummaries(ctx context.Context, date time.Time, rows []model.SeatSummary) error

	// ReplaceIndicators atomically swaps the full indicator row set for a
	// date.
	ReplaceIndicators(ctx context.Context, date time.Time, rows []model.IndicatorSnapshot) error

	// --- Derived reads ---

	// WeightedHistory returns a commodity's synthetic series ascending by
	// date; limit > 0 keeps only the most recent rows.
	WeightedHistory(ctx context.Context, commodity string, limit int) ([]model.WeightedContract, error)

	// SeatSummariesByDay returns one day's summaries for a commodity in
	// their ranked (|net_vol| descending) order.
	SeatSummariesByDay(ctx context.Context, date time.Time, commodity string) ([]model.SeatSummary, error)

	// SeatHistory returns one seat's summaries for a commodity ascending
	// by date; limit > 0 keeps only the most recent rows.
	SeatHistory(ctx context.Context, commodity, seat string, limit int) ([]model.SeatSummary, error)

	// IndicatorHistory returns a commodity's snapshots at one breadth
	// ascending by date; limit > 0 keeps only the most recent rows.
	IndicatorHistory(ctx context.Context, commodity string, breadth model.Breadth, limit int) ([]model.IndicatorSnapshot, error)

	// Commodities lists the distinct commodities with derived data, sorted.
	Commodities(ctx context.Context) ([]string, error)
}

// tail keeps the most recent n elements of an ascending series.
func tail[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[len(rows)-n:]
	}
	return rows
}
