// Package screen evaluates configurable multi-condition filters across
// commodities, scoring each commodity by the fixed weights of the
// conditions it satisfies.
//
// Every condition is a pure function of one commodity's already-materialized
// weighted-contract and indicator history — there is no cross-commodity
// comparison. A commodity lacking the history a condition needs simply
// fails that condition; nothing errors. Commodities matching no condition
// are excluded from the result.
package screen

import (
	"errors"
	"sort"

	"github.com/seatflow/position-engine/internal/model"
)

// Operator compares two indicator values.
type Operator string

const (
	GreaterThan Operator = ">"
	LessThan    Operator = "<"
)

// Extremum selects which end of a rolling window a value must touch.
type Extremum string

const (
	High Extremum = "high"
	Low  Extremum = "low"
)

// Metric selects which indicator family a comparison reads.
type Metric string

const (
	Real Metric = "real"
	Net  Metric = "net"
)

// Field names one indicator snapshot column for extremum conditions.
type Field string

const (
	RealLong  Field = "real_long"
	RealShort Field = "real_short"
	RealDiff  Field = "real_diff"
	NetLong   Field = "net_long"
	NetShort  Field = "net_short"
	NetDiff   Field = "net_diff"
)

// PriceWindows are the supported look-back windows for price extremum
// conditions.
var PriceWindows = []int{5, 8, 13, 21}

var ErrInvalidCondition = errors.New("screen: invalid condition config")

// PriceCondition is satisfied when the latest weighted close is the
// extremum of the last Window closes.
type PriceCondition struct {
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Window   int      `json:"window"` // one of PriceWindows
	Extremum Extremum `json:"extremum"`
	Weight   int64    `json:"weight"`
}

// CompareCondition is satisfied when the latest diff of one indicator
// family at BreadthLeft relates to the same diff at BreadthRight by Op.
type CompareCondition struct {
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	Metric       Metric        `json:"metric"`
	BreadthLeft  model.Breadth `json:"breadth_left"`
	BreadthRight model.Breadth `json:"breadth_right"`
	Op           Operator      `json:"op"`
	Weight       int64         `json:"weight"`
}

// ExtremumCondition is satisfied when the latest value of one indicator
// field at one breadth is the extremum of its last Window values.
type ExtremumCondition struct {
	Name     string        `json:"name"`
	Enabled  bool          `json:"enabled"`
	Field    Field         `json:"field"`
	Breadth  model.Breadth `json:"breadth"`
	Window   int           `json:"window"`
	Extremum Extremum      `json:"extremum"`
	Weight   int64         `json:"weight"`
}

// Config is a set of independently-toggleable condition specs.
type Config struct {
	Price    []PriceCondition    `json:"price"`
	Compare  []CompareCondition  `json:"compare"`
	Extremum []ExtremumCondition `json:"extremum"`
}

// Validate rejects conditions whose parameters are outside the supported
// sets. Disabled conditions are not checked.
func (c Config) Validate() error {
	for _, pc := range c.Price {
		if !pc.Enabled {
			continue
		}
		if pc.Name == "" || !validPriceWindow(pc.Window) || !validExtremum(pc.Extremum) {
			return ErrInvalidCondition
		}
	}
	for _, cc := range c.Compare {
		if !cc.Enabled {
			continue
		}
		if cc.Name == "" || (cc.Metric != Real && cc.Metric != Net) ||
			(cc.Op != GreaterThan && cc.Op != LessThan) {
			return ErrInvalidCondition
		}
	}
	for _, ec := range c.Extremum {
		if !ec.Enabled {
			continue
		}
		if ec.Name == "" || ec.Window <= 0 || !validExtremum(ec.Extremum) || fieldValue(model.IndicatorSnapshot{}, ec.Field) == nil {
			return ErrInvalidCondition
		}
	}
	return nil
}

// Input is one commodity's materialized history: weighted contracts and
// indicator snapshots, each ascending by date.
type Input struct {
	Commodity  string
	Prices     []model.WeightedContract
	Indicators []model.IndicatorSnapshot
}

// Evaluate runs every enabled condition against every commodity and returns
// the commodities with at least one match, ordered by score descending.
// Equal scores keep input order.
func Evaluate(cfg Config, inputs []Input) []model.ScreeningResult {
	var results []model.ScreeningResult

	for _, in := range inputs {
		var res model.ScreeningResult
		res.Commodity = in.Commodity

		for _, pc := range cfg.Price {
			if pc.Enabled && priceSatisfied(pc, in.Prices) {
				res.Score += pc.Weight
				res.Matched = append(res.Matched, pc.Name)
			}
		}
		for _, cc := range cfg.Compare {
			if cc.Enabled && compareSatisfied(cc, in.Indicators) {
				res.Score += cc.Weight
				res.Matched = append(res.Matched, cc.Name)
			}
		}
		for _, ec := range cfg.Extremum {
			if ec.Enabled && extremumSatisfied(ec, in.Indicators) {
				res.Score += ec.Weight
				res.Matched = append(res.Matched, ec.Name)
			}
		}

		if len(res.Matched) > 0 {
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func priceSatisfied(pc PriceCondition, prices []model.WeightedContract) bool {
	if len(prices) < pc.Window {
		return false
	}
	window := prices[len(prices)-pc.Window:]
	today := window[len(window)-1].Close

	for _, p := range window {
		if pc.Extremum == High && p.Close.GreaterThan(today) {
			return false
		}
		if pc.Extremum == Low && p.Close.LessThan(today) {
			return false
		}
	}
	return true
}

func compareSatisfied(cc CompareCondition, snaps []model.IndicatorSnapshot) bool {
	field := NetDiff
	if cc.Metric == Real {
		field = RealDiff
	}

	left, okL := latestValue(snaps, cc.BreadthLeft, field)
	right, okR := latestValue(snaps, cc.BreadthRight, field)
	if !okL || !okR {
		return false
	}

	if cc.Op == GreaterThan {
		return left > right
	}
	return left < right
}

func extremumSatisfied(ec ExtremumCondition, snaps []model.IndicatorSnapshot) bool {
	series := seriesAt(snaps, ec.Breadth, ec.Field)
	if len(series) < ec.Window {
		return false
	}
	window := series[len(series)-ec.Window:]
	today := window[len(window)-1]

	for _, v := range window {
		if ec.Extremum == High && v > today {
			return false
		}
		if ec.Extremum == Low && v < today {
			return false
		}
	}
	return true
}

// latestValue returns the newest value of a field at a breadth.
func latestValue(snaps []model.IndicatorSnapshot, breadth model.Breadth, field Field) (int64, bool) {
	series := seriesAt(snaps, breadth, field)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// seriesAt extracts one field's values at one breadth, preserving the
// input's date order.
func seriesAt(snaps []model.IndicatorSnapshot, breadth model.Breadth, field Field) []int64 {
	var series []int64
	for _, s := range snaps {
		if s.Breadth != breadth {
			continue
		}
		if v := fieldValue(s, field); v != nil {
			series = append(series, *v)
		}
	}
	return series
}

func fieldValue(s model.IndicatorSnapshot, field Field) *int64 {
	switch field {
	case RealLong:
		return &s.RealLong
	case RealShort:
		return &s.RealShort
	case RealDiff:
		return &s.RealDiff
	case NetLong:
		return &s.NetLong
	case NetShort:
		return &s.NetShort
	case NetDiff:
		return &s.NetDiff
	}
	return nil
}

func validPriceWindow(w int) bool {
	for _, pw := range PriceWindows {
		if w == pw {
			return true
		}
	}
	return false
}

func validExtremum(e Extremum) bool {
	return e == High || e == Low
}
