// Package distribution produces single-day ranked breakdowns of seat
// positions and position changes, plus the aggregate long/short split over
// the full seat set.
//
// Breakdowns keep the top entries and consolidate the remainder into one
// "other" bucket. Slices whose share of the reported total falls below
// MinRatioPct are dropped after the ratios are computed — including the
// "other" bucket. For highly fragmented holdings this suppression can
// legitimately empty the whole result; the behavior is preserved as-is.
package distribution

import (
	"math"
	"sort"

	"github.com/seatflow/position-engine/internal/model"
)

// Kind selects which magnitude a breakdown ranks by.
type Kind string

const (
	// Position ranks seats by |net_vol|.
	Position Kind = "position"
	// Change ranks seats by |net_chg|.
	Change Kind = "change"
)

// OtherCategory is the label of the consolidation bucket.
const OtherCategory = "other"

// TopSlices is how many ranked seats are reported individually before the
// remainder is consolidated.
const TopSlices = 10

// MinRatioPct is the suppression threshold: slices below this share of the
// reported total are dropped post-hoc.
const MinRatioPct = 1.0

// Slices ranks the given seat summaries (one commodity, one day) by the
// chosen magnitude, keeps the top TopSlices entries at their magnitude, and
// consolidates the remainder into an "other" bucket carrying the signed sum
// of the remaining values. Ratios are percent of the reported total,
// rounded to 2 decimals. A zero reported total yields no slices.
func Slices(summaries []model.SeatSummary, kind Kind) []model.DistributionSlice {
	ranked := make([]model.SeatSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return abs(metric(ranked[i], kind)) > abs(metric(ranked[j], kind))
	})

	var slices []model.DistributionSlice
	var total int64

	top := len(ranked)
	if top > TopSlices {
		top = TopSlices
	}
	for _, s := range ranked[:top] {
		v := abs(metric(s, kind))
		slices = append(slices, model.DistributionSlice{Category: s.Seat, Value: v})
		total += v
	}

	if len(ranked) > top {
		var other int64
		for _, s := range ranked[top:] {
			other += metric(s, kind) // signed sum for the consolidation bucket
		}
		slices = append(slices, model.DistributionSlice{Category: OtherCategory, Value: other})
		total += other
	}

	if total == 0 {
		return nil
	}

	kept := slices[:0]
	for _, s := range slices {
		ratio := float64(s.Value) / float64(total) * 100
		s.Ratio = math.Round(ratio*100) / 100
		if s.Ratio < MinRatioPct {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// Split computes the aggregate long/short percentage split over the full
// seat set, not just the reported top entries. A zero total defaults to a
// 50/50 split.
func Split(summaries []model.SeatSummary) model.LongShortSplit {
	var long, short int64
	for _, s := range summaries {
		long += s.LongVol
		short += s.ShortVol
	}

	total := long + short
	if total == 0 {
		return model.LongShortSplit{LongPct: 50, ShortPct: 50}
	}

	longPct := math.Round(float64(long)/float64(total)*10000) / 100
	return model.LongShortSplit{
		LongPct:  longPct,
		ShortPct: math.Round((100-longPct)*100) / 100,
	}
}

func metric(s model.SeatSummary, kind Kind) int64 {
	if kind == Change {
		return s.NetChg
	}
	return s.NetVol
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
