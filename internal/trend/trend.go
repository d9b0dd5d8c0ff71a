// Package trend computes per-seat rolling-window metrics from net-position
// and settlement-price history: the trend amplitude and the mark-to-
// settlement profit/loss.
//
// Both calculators degrade to zero on insufficient history rather than
// erroring, so downstream displays stay non-blocking. P&L values use
// shopspring/decimal with one rounding policy (ProfitScale) — never a mix
// of integer and decimal rounding.
package trend

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/model"
)

// Windows are the supported trend look-back windows in trading days.
var Windows = []int{5, 15, 30}

// ProfitWindows are the supported profit look-back windows in trading days.
var ProfitWindows = []int{15, 60, 120}

// ProfitScale is the number of decimal places for P&L rounding.
var ProfitScale int32 = 2

// Observation is one day's net position for a seat, ascending by date with
// the query date last.
type Observation struct {
	Date   time.Time
	NetVol int64
}

// Settlement is a day's official settlement price and the contract unit in
// effect for that day.
type Settlement struct {
	Price decimal.Decimal
	Unit  decimal.Decimal
}

// Trend returns the largest move of today's net position against the range
// of the prior `window` observations:
//
//	max(|today - min(prior)|, |today - max(prior)|)
//
// At least window+1 observations are required; fewer returns 0.
// The result is always non-negative.
func Trend(history []Observation, window int) int64 {
	if window <= 0 || len(history) < window+1 {
		return 0
	}

	today := history[len(history)-1].NetVol
	prior := history[len(history)-1-window : len(history)-1]

	minPrior, maxPrior := prior[0].NetVol, prior[0].NetVol
	for _, o := range prior[1:] {
		if o.NetVol < minPrior {
			minPrior = o.NetVol
		}
		if o.NetVol > maxPrior {
			maxPrior = o.NetVol
		}
	}

	down := abs(today - minPrior)
	up := abs(today - maxPrior)
	if down > up {
		return down
	}
	return up
}

// Profit sums the daily mark-to-settlement P&L over the last `window`
// observations ending at the query date:
//
//	pnl_t = (net_t × settle_t - net_{t-1} × settle_{t-1}) × unit_t
//
// Days whose own or prior settlement price is missing from `settles`
// (keyed by model.DayKey) are skipped, not zero-filled; sparse settlement
// history therefore biases the sum toward the days that matched.
// The result is rounded to ProfitScale.
func Profit(history []Observation, settles map[string]Settlement, window int) decimal.Decimal {
	if window <= 0 || len(history) < 2 {
		return decimal.Zero
	}

	start := len(history) - window
	if start < 1 {
		start = 1
	}

	var pnl decimal.Decimal
	for t := start; t < len(history); t++ {
		cur, ok := settles[model.DayKey(history[t].Date)]
		if !ok {
			continue
		}
		prev, ok := settles[model.DayKey(history[t-1].Date)]
		if !ok {
			continue
		}

		markNow := decimal.NewFromInt(history[t].NetVol).Mul(cur.Price)
		markPrev := decimal.NewFromInt(history[t-1].NetVol).Mul(prev.Price)
		pnl = pnl.Add(markNow.Sub(markPrev).Mul(cur.Unit))
	}
	return pnl.Round(ProfitScale)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
