// Package model defines the core domain types shared across the position
// engine. All price and P&L values use shopspring/decimal — never float64
// for money. Volumes and open interest are contract counts and stay int64.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Breadth is the selection depth feeding an indicator calculation: the
// top 10 seats, the top 20, or the full seat set.
type Breadth int

const (
	// BreadthAll selects every seat (no truncation).
	BreadthAll Breadth = 0

	Breadth10 Breadth = 10
	Breadth20 Breadth = 20
)

// Breadths lists the supported breadths in computation order.
var Breadths = []Breadth{Breadth10, Breadth20, BreadthAll}

func (b Breadth) String() string {
	if b == BreadthAll {
		return "all"
	}
	return fmt.Sprintf("%d", int(b))
}

// ParseBreadth parses "10", "20" or "all". The empty string means all.
func ParseBreadth(s string) (Breadth, error) {
	switch s {
	case "10":
		return Breadth10, nil
	case "20":
		return Breadth20, nil
	case "all", "":
		return BreadthAll, nil
	}
	return 0, fmt.Errorf("model: invalid breadth %q (want 10, 20 or all)", s)
}

// DayKey formats a date as the canonical day key used for grouping,
// cache keys and storage lookups. Intraday time components are ignored.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MarketRecord is one raw daily quote for a single expiry contract.
// Immutable per (date, contract); ingestion rewrites replace the row whole.
type MarketRecord struct {
	Date         time.Time       `json:"date" db:"date"`
	Contract     string          `json:"contract" db:"contract"` // e.g. "cu2409"
	Open         decimal.Decimal `json:"open" db:"open"`
	High         decimal.Decimal `json:"high" db:"high"`
	Low          decimal.Decimal `json:"low" db:"low"`
	Close        decimal.Decimal `json:"close" db:"close"`
	Settle       decimal.Decimal `json:"settle" db:"settle"`
	Volume       int64           `json:"volume" db:"volume"`
	OpenInterest int64           `json:"open_interest" db:"open_interest"`
	ContractUnit decimal.Decimal `json:"contract_unit" db:"contract_unit"` // units of underlying per contract
}

// RawSeatHolding is one raw clearing-member position row for a single
// contract. Unique key (date, contract, seat).
type RawSeatHolding struct {
	Date     time.Time `json:"date" db:"date"`
	Contract string    `json:"contract" db:"contract"`
	Seat     string    `json:"seat" db:"seat"`
	LongVol  int64     `json:"long_vol" db:"long_vol"`
	ShortVol int64     `json:"short_vol" db:"short_vol"`
	LongChg  int64     `json:"long_chg" db:"long_chg"`
	ShortChg int64     `json:"short_chg" db:"short_chg"`
}

// WeightedContract is the open-interest-weighted synthetic daily record for
// one commodity, combining all of its expiry contracts. Key (date, commodity).
// It is a deterministic pure function of the day's MarketRecords with
// positive open interest and is fully recomputed on every input change.
type WeightedContract struct {
	Date         time.Time       `json:"date" db:"date"`
	Commodity    string          `json:"commodity" db:"commodity"`
	Open         decimal.Decimal `json:"open" db:"open"`
	High         decimal.Decimal `json:"high" db:"high"`
	Low          decimal.Decimal `json:"low" db:"low"`
	Close        decimal.Decimal `json:"close" db:"close"`
	Settle       decimal.Decimal `json:"settle" db:"settle"`
	Volume       int64           `json:"volume" db:"volume"`               // plain sum, unweighted
	OpenInterest int64           `json:"open_interest" db:"open_interest"` // plain sum, unweighted
	ContractUnit decimal.Decimal `json:"contract_unit" db:"contract_unit"`
}

// SeatSummary is a seat's net position in one commodity on one day,
// aggregated across all of that commodity's contracts.
// Key (date, commodity, seat).
//
// NetVol and NetChg are always recomputed from the long/short fields by the
// aggregator, never stored independently:
//
//	NetVol = LongVol - ShortVol
//	NetChg = LongChg - ShortChg
type SeatSummary struct {
	Date      time.Time `json:"date" db:"date"`
	Commodity string    `json:"commodity" db:"commodity"`
	Seat      string    `json:"seat" db:"seat"`
	LongVol   int64     `json:"long_vol" db:"long_vol"`
	ShortVol  int64     `json:"short_vol" db:"short_vol"`
	LongChg   int64     `json:"long_chg" db:"long_chg"`
	ShortChg  int64     `json:"short_chg" db:"short_chg"`
	NetVol    int64     `json:"net_vol" db:"net_vol"`
	NetChg    int64     `json:"net_chg" db:"net_chg"`
}

// IndicatorSnapshot holds the Real, Net and Flow long-short aggregates for
// one (date, commodity, breadth).
//
// ReduceLong accumulates negative magnitudes and ReduceShort accumulates the
// raw (negative) net volumes of (-,+) seats. The asymmetric sign convention
// is inherited behavior; consumers must not assume the buckets share a sign.
type IndicatorSnapshot struct {
	Date      time.Time `json:"date" db:"date"`
	Commodity string    `json:"commodity" db:"commodity"`
	Breadth   Breadth   `json:"breadth" db:"breadth"`

	RealLong  int64 `json:"real_long" db:"real_long"`
	RealShort int64 `json:"real_short" db:"real_short"`
	RealDiff  int64 `json:"real_diff" db:"real_diff"`

	NetLong  int64 `json:"net_long" db:"net_long"`
	NetShort int64 `json:"net_short" db:"net_short"`
	NetDiff  int64 `json:"net_diff" db:"net_diff"`

	AddLong     int64 `json:"add_long" db:"add_long"`
	AddShort    int64 `json:"add_short" db:"add_short"`
	ReduceLong  int64 `json:"reduce_long" db:"reduce_long"`
	ReduceShort int64 `json:"reduce_short" db:"reduce_short"`
}

// TrendPoint is one rolling-window trend value for a seat.
type TrendPoint struct {
	Commodity string    `json:"commodity"`
	Seat      string    `json:"seat"`
	Date      time.Time `json:"date"`
	Window    int       `json:"window"`
	Value     int64     `json:"value"`
}

// ProfitPoint is one rolling-window mark-to-settlement P&L value for a seat.
type ProfitPoint struct {
	Commodity string          `json:"commodity"`
	Seat      string          `json:"seat"`
	Date      time.Time       `json:"date"`
	Window    int             `json:"window"`
	Value     decimal.Decimal `json:"value"`
}

// DistributionSlice is one category of a single-day position or
// position-change breakdown. Ephemeral: computed on demand, never stored.
type DistributionSlice struct {
	Category string  `json:"category"` // seat name, or "other"
	Value    int64   `json:"value"`
	Ratio    float64 `json:"ratio"` // percent of the reported total
}

// LongShortSplit is the aggregate long/short percentage split over the full
// seat set for one day. Defaults to 50/50 when total volume is zero.
type LongShortSplit struct {
	LongPct  float64 `json:"long_pct"`
	ShortPct float64 `json:"short_pct"`
}

// ScreeningResult is one commodity's match against a screening config.
// Ephemeral: returned directly to callers, never stored.
type ScreeningResult struct {
	Commodity string   `json:"commodity"`
	Matched   []string `json:"matched_conditions"`
	Score     int64    `json:"score"`
}

// ValidationError rejects a single malformed raw record at ingest. One bad
// record never aborts a batch; the caller reports these per index and
// applies the rest.
type ValidationError struct {
	Record string // "quote" or "holding"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: invalid %s record: %s %s", e.Record, e.Field, e.Reason)
}

// ValidateMarketRecord checks the required key fields of a raw quote.
func ValidateMarketRecord(r *MarketRecord) error {
	if r.Date.IsZero() {
		return &ValidationError{Record: "quote", Field: "date", Reason: "is required"}
	}
	if r.Contract == "" {
		return &ValidationError{Record: "quote", Field: "contract", Reason: "is required"}
	}
	if r.Volume < 0 {
		return &ValidationError{Record: "quote", Field: "volume", Reason: "must not be negative"}
	}
	if r.OpenInterest < 0 {
		return &ValidationError{Record: "quote", Field: "open_interest", Reason: "must not be negative"}
	}
	return nil
}

// ValidateSeatHolding checks the required key fields of a raw holding.
func ValidateSeatHolding(h *RawSeatHolding) error {
	if h.Date.IsZero() {
		return &ValidationError{Record: "holding", Field: "date", Reason: "is required"}
	}
	if h.Contract == "" {
		return &ValidationError{Record: "holding", Field: "contract", Reason: "is required"}
	}
	if h.Seat == "" {
		return &ValidationError{Record: "holding", Field: "seat", Reason: "is required"}
	}
	if h.LongVol < 0 || h.ShortVol < 0 {
		return &ValidationError{Record: "holding", Field: "volume", Reason: "must not be negative"}
	}
	return nil
}
