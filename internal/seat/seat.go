// Package seat aggregates raw per-contract clearing-member holdings into
// per-commodity seat summaries.
//
// Aggregation is all-or-nothing per (date, commodity, seat): every
// qualifying raw row for a seat is summed, and net fields are always
// recomputed from the summed longs and shorts, never trusted from input.
package seat

import (
	"sort"
	"time"

	"github.com/seatflow/position-engine/internal/contract"
	"github.com/seatflow/position-engine/internal/model"
)

// Aggregate sums the raw holdings that belong to the target commodity and
// date into one summary per seat, ordered by |net_vol| descending.
//
// The sort is stable by contract: seats with equal |net_vol| keep their
// first-appearance order from the input. Downstream indicator tie-breaking
// depends on this ordering, so it must hold across recomputations.
func Aggregate(date time.Time, commodity string, table *contract.Table, holdings []model.RawSeatHolding) []model.SeatSummary {
	day := model.DayKey(date)

	index := make(map[string]int)
	var summaries []model.SeatSummary

	for _, h := range holdings {
		if model.DayKey(h.Date) != day {
			continue
		}
		if !table.BelongsTo(h.Contract, commodity) {
			continue
		}

		i, ok := index[h.Seat]
		if !ok {
			i = len(summaries)
			index[h.Seat] = i
			summaries = append(summaries, model.SeatSummary{
				Date:      h.Date,
				Commodity: commodity,
				Seat:      h.Seat,
			})
		}
		summaries[i].LongVol += h.LongVol
		summaries[i].ShortVol += h.ShortVol
		summaries[i].LongChg += h.LongChg
		summaries[i].ShortChg += h.ShortChg
	}

	for i := range summaries {
		summaries[i].NetVol = summaries[i].LongVol - summaries[i].ShortVol
		summaries[i].NetChg = summaries[i].LongChg - summaries[i].ShortChg
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return abs(summaries[i].NetVol) > abs(summaries[j].NetVol)
	})

	return summaries
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
