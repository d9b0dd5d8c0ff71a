// Package indicator computes the Real, Net and Flow long-short aggregates
// from seat summaries, at breadths 10, 20 and all, per trading day.
//
// The calculators are pure and stateless: inputs are fully materialized
// seat summaries, outputs are snapshot rows. All selection steps use stable
// sorts so that equal volumes keep the aggregator's ranked input order —
// that ordering is a binding contract, not an implementation detail.
package indicator

import (
	"sort"

	"github.com/seatflow/position-engine/internal/model"
)

// Compute derives one IndicatorSnapshot per (date, breadth) from the given
// seat summaries, which may span multiple trading days of one commodity.
// The result is ordered by date ascending, breadths in model.Breadths order
// within a day.
func Compute(summaries []model.SeatSummary) []model.IndicatorSnapshot {
	byDay := make(map[string][]model.SeatSummary)
	var days []string
	for _, s := range summaries {
		day := model.DayKey(s.Date)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], s)
	}
	sort.Strings(days)

	snapshots := make([]model.IndicatorSnapshot, 0, len(days)*len(model.Breadths))
	for _, day := range days {
		rows := byDay[day]
		for _, breadth := range model.Breadths {
			snap := model.IndicatorSnapshot{
				Date:      rows[0].Date,
				Commodity: rows[0].Commodity,
				Breadth:   breadth,
			}
			computeReal(&snap, rows, breadth)
			selected := selectByNet(rows, breadth)
			computeNet(&snap, selected)
			computeFlow(&snap, selected)
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

// poolEntry is one directional volume contribution to the Real selection
// pool. Each seat contributes two separate entries: its long volume and its
// short volume, never netted against each other.
type poolEntry struct {
	seat string
	vol  int64
}

// computeReal fills the Real long-short fields.
//
// Selection is two-stage: breadth is applied to a pool of raw directional
// volumes (long and short entries ranked together), but the magnitudes are
// then measured from each selected seat's true net exposure. A seat whose
// short side earns it a pool slot still contributes its full net volume,
// whichever sign that carries.
func computeReal(snap *model.IndicatorSnapshot, rows []model.SeatSummary, breadth model.Breadth) {
	pool := make([]poolEntry, 0, 2*len(rows))
	for _, s := range rows {
		pool = append(pool, poolEntry{seat: s.Seat, vol: s.LongVol})
		pool = append(pool, poolEntry{seat: s.Seat, vol: s.ShortVol})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].vol > pool[j].vol
	})

	n := len(pool)
	if breadth != model.BreadthAll && int(breadth) < n {
		n = int(breadth)
	}

	// Distinct seats among the top-n entries, first-appearance order.
	picked := make(map[string]bool, n)
	netBySeat := make(map[string]int64, len(rows))
	for _, s := range rows {
		netBySeat[s.Seat] = s.NetVol
	}

	for _, e := range pool[:n] {
		if picked[e.seat] {
			continue
		}
		picked[e.seat] = true
		net := netBySeat[e.seat]
		if net > 0 {
			snap.RealLong += net
		} else if net < 0 {
			snap.RealShort += -net
		}
	}
	snap.RealDiff = snap.RealLong - snap.RealShort
}

// selectByNet returns the top-N seats ranked by |net_vol| descending, input
// order preserved on ties. The same selection feeds Net and Flow.
func selectByNet(rows []model.SeatSummary, breadth model.Breadth) []model.SeatSummary {
	ranked := make([]model.SeatSummary, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		return abs(ranked[i].NetVol) > abs(ranked[j].NetVol)
	})
	if breadth != model.BreadthAll && int(breadth) < len(ranked) {
		ranked = ranked[:int(breadth)]
	}
	return ranked
}

func computeNet(snap *model.IndicatorSnapshot, selected []model.SeatSummary) {
	var short int64
	for _, s := range selected {
		if s.NetVol > 0 {
			snap.NetLong += s.NetVol
		} else {
			short += s.NetVol
		}
	}
	snap.NetShort = -short
	snap.NetDiff = snap.NetLong - snap.NetShort
}

// computeFlow classifies each selected seat by the signs of its net volume
// and net change:
//
//	(+,+) addLong    += net_vol
//	(-,-) addShort   += |net_vol|
//	(+,-) reduceLong += -net_vol   (accumulates as a negative magnitude)
//	(-,+) reduceShort += net_vol
//
// Seats with zero net volume or zero net change contribute to no bucket.
// The asymmetric sign convention is inherited behavior and preserved as-is.
func computeFlow(snap *model.IndicatorSnapshot, selected []model.SeatSummary) {
	for _, s := range selected {
		if s.NetVol == 0 || s.NetChg == 0 {
			continue
		}
		switch {
		case s.NetVol > 0 && s.NetChg > 0:
			snap.AddLong += s.NetVol
		case s.NetVol < 0 && s.NetChg < 0:
			snap.AddShort += -s.NetVol
		case s.NetVol > 0 && s.NetChg < 0:
			snap.ReduceLong += -s.NetVol
		case s.NetVol < 0 && s.NetChg > 0:
			snap.ReduceShort += s.NetVol
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
