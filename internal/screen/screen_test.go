package screen

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// prices builds an ascending weighted-contract series from closes.
func prices(closes ...float64) []model.WeightedContract {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.WeightedContract, len(closes))
	for i, c := range closes {
		out[i] = model.WeightedContract{
			Date:      base.AddDate(0, 0, i),
			Commodity: "copper",
			Close:     d(c),
		}
	}
	return out
}

// diffs builds an ascending snapshot series at one breadth from real/net
// diff values.
func diffs(breadth model.Breadth, realDiffs ...int64) []model.IndicatorSnapshot {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.IndicatorSnapshot, len(realDiffs))
	for i, v := range realDiffs {
		out[i] = model.IndicatorSnapshot{
			Date:      base.AddDate(0, 0, i),
			Commodity: "copper",
			Breadth:   breadth,
			RealDiff:  v,
			NetDiff:   -v,
		}
	}
	return out
}

func TestEvaluate_ScoreAndMatchedConditions(t *testing.T) {
	// A commodity satisfying "price-condition" (weight 10) and
	// "real-compare" (weight 15) scores 25.
	cfg := Config{
		Price: []PriceCondition{{
			Name: "price-condition", Enabled: true, Window: 5, Extremum: High, Weight: 10,
		}},
		Compare: []CompareCondition{{
			Name: "real-compare", Enabled: true, Metric: Real,
			BreadthLeft: model.Breadth10, BreadthRight: model.Breadth20,
			Op: GreaterThan, Weight: 15,
		}},
	}
	in := Input{
		Commodity: "copper",
		Prices:    prices(10, 11, 12, 13, 14), // latest close is the 5-day high
		Indicators: append(
			diffs(model.Breadth10, 100),
			diffs(model.Breadth20, 40)...,
		),
	}

	results := Evaluate(cfg, []Input{in})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Score != 25 {
		t.Errorf("expected score 25, got %d", r.Score)
	}
	if len(r.Matched) != 2 || r.Matched[0] != "price-condition" || r.Matched[1] != "real-compare" {
		t.Errorf("expected matched [price-condition real-compare], got %v", r.Matched)
	}
}

func TestEvaluate_ZeroMatchesExcluded(t *testing.T) {
	cfg := Config{
		Price: []PriceCondition{{
			Name: "new-high", Enabled: true, Window: 5, Extremum: High, Weight: 10,
		}},
	}
	in := Input{
		Commodity: "copper",
		Prices:    prices(14, 13, 12, 11, 10), // latest close is the low, not the high
	}

	if results := Evaluate(cfg, []Input{in}); len(results) != 0 {
		t.Errorf("commodity with no matches must be excluded, got %v", results)
	}
}

func TestEvaluate_SortedByScoreDescending(t *testing.T) {
	cfg := Config{
		Price: []PriceCondition{
			{Name: "high-5", Enabled: true, Window: 5, Extremum: High, Weight: 10},
			{Name: "high-8", Enabled: true, Window: 8, Extremum: High, Weight: 20},
		},
	}
	weak := Input{Commodity: "weak", Prices: prices(10, 11, 12, 13, 14)}               // only high-5
	strong := Input{Commodity: "strong", Prices: prices(1, 2, 3, 4, 5, 6, 7, 8)}       // high-5 and high-8

	results := Evaluate(cfg, []Input{weak, strong})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Commodity != "strong" || results[1].Commodity != "weak" {
		t.Errorf("expected strong before weak, got %v", results)
	}
	if results[0].Score != 30 || results[1].Score != 10 {
		t.Errorf("expected scores 30/10, got %d/%d", results[0].Score, results[1].Score)
	}
}

func TestEvaluate_DisabledConditionsIgnored(t *testing.T) {
	cfg := Config{
		Price: []PriceCondition{{
			Name: "off", Enabled: false, Window: 5, Extremum: High, Weight: 10,
		}},
	}
	in := Input{Commodity: "copper", Prices: prices(10, 11, 12, 13, 14)}

	if results := Evaluate(cfg, []Input{in}); len(results) != 0 {
		t.Errorf("disabled conditions must not match, got %v", results)
	}
}

func TestEvaluate_InsufficientHistoryFailsCondition(t *testing.T) {
	cfg := Config{
		Price: []PriceCondition{{
			Name: "high-21", Enabled: true, Window: 21, Extremum: High, Weight: 10,
		}},
	}
	in := Input{Commodity: "copper", Prices: prices(10, 11, 12)}

	if results := Evaluate(cfg, []Input{in}); len(results) != 0 {
		t.Errorf("short history must fail the condition, got %v", results)
	}
}

func TestEvaluate_PriceLowExtremum(t *testing.T) {
	cfg := Config{
		Price: []PriceCondition{{
			Name: "low-5", Enabled: true, Window: 5, Extremum: Low, Weight: 7,
		}},
	}
	in := Input{Commodity: "copper", Prices: prices(14, 13, 12, 11, 10)}

	results := Evaluate(cfg, []Input{in})
	if len(results) != 1 || results[0].Score != 7 {
		t.Fatalf("expected low extremum to match, got %v", results)
	}
}

func TestEvaluate_IndicatorExtremum(t *testing.T) {
	cfg := Config{
		Extremum: []ExtremumCondition{{
			Name: "real-diff-high-3", Enabled: true, Field: RealDiff,
			Breadth: model.Breadth10, Window: 3, Extremum: High, Weight: 5,
		}},
	}
	in := Input{
		Commodity:  "copper",
		Indicators: diffs(model.Breadth10, 10, 20, 30),
	}

	results := Evaluate(cfg, []Input{in})
	if len(results) != 1 || results[0].Score != 5 {
		t.Fatalf("expected indicator extremum to match, got %v", results)
	}
}

func TestEvaluate_CompareUsesNetDiffForNetMetric(t *testing.T) {
	// NetDiff is the negation of RealDiff in the fixture: 10 vs 20
	// becomes -10 vs -20, flipping the comparison.
	cfg := Config{
		Compare: []CompareCondition{{
			Name: "net-compare", Enabled: true, Metric: Net,
			BreadthLeft: model.Breadth10, BreadthRight: model.Breadth20,
			Op: GreaterThan, Weight: 3,
		}},
	}
	in := Input{
		Commodity: "copper",
		Indicators: append(
			diffs(model.Breadth10, 10),
			diffs(model.Breadth20, 20)...,
		),
	}

	results := Evaluate(cfg, []Input{in})
	if len(results) != 1 {
		t.Fatalf("expected net comparison -10 > -20 to match, got %v", results)
	}
}

func TestEvaluate_CompareMissingBreadthFails(t *testing.T) {
	cfg := Config{
		Compare: []CompareCondition{{
			Name: "real-compare", Enabled: true, Metric: Real,
			BreadthLeft: model.Breadth10, BreadthRight: model.Breadth20,
			Op: GreaterThan, Weight: 3,
		}},
	}
	in := Input{
		Commodity:  "copper",
		Indicators: diffs(model.Breadth10, 10), // breadth 20 series absent
	}

	if results := Evaluate(cfg, []Input{in}); len(results) != 0 {
		t.Errorf("missing breadth history must fail the condition, got %v", results)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := Config{
		Price: []PriceCondition{{Name: "x", Enabled: true, Window: 7, Extremum: High}},
	}
	if err := bad.Validate(); err != ErrInvalidCondition {
		t.Errorf("window 7 is unsupported, expected ErrInvalidCondition, got %v", err)
	}

	disabled := Config{
		Price: []PriceCondition{{Name: "x", Enabled: false, Window: 7, Extremum: High}},
	}
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled conditions must not be validated, got %v", err)
	}

	good := Config{
		Price:    []PriceCondition{{Name: "x", Enabled: true, Window: 13, Extremum: Low}},
		Compare:  []CompareCondition{{Name: "y", Enabled: true, Metric: Net, Op: LessThan}},
		Extremum: []ExtremumCondition{{Name: "z", Enabled: true, Field: NetShort, Window: 4, Extremum: High}},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}
