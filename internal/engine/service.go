// Package engine orchestrates recomputation of the derived tables and
// exposes the HTTP surface: raw-record ingestion, derived-table queries,
// rolling seat metrics, distributions and screening.
//
// The calculators themselves live in synth, seat, indicator, trend,
// distribution and screen; this package materializes their inputs from the
// store, invokes them, and replaces the affected day's derived rows whole.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seatflow/position-engine/internal/contract"
	"github.com/seatflow/position-engine/internal/indicator"
	"github.com/seatflow/position-engine/internal/metrics"
	"github.com/seatflow/position-engine/internal/model"
	"github.com/seatflow/position-engine/internal/seat"
	"github.com/seatflow/position-engine/internal/store"
	"github.com/seatflow/position-engine/internal/synth"
)

const dateLayout = "2006-01-02"

// Service handles ingestion and derived-data queries. A mutex serializes
// day recomputation (single-instance); per-day recomputes write disjoint
// keys, so horizontal scaling only needs the writers partitioned by date.
type Service struct {
	store store.Store
	table *contract.Table
	mu    sync.Mutex
	hub   *WSHub // optional WebSocket hub for refresh broadcasts
}

// NewService creates a new engine service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, table *contract.Table, hub *WSHub) *Service {
	return &Service{
		store: st,
		table: table,
		hub:   hub,
	}
}

// RecomputeDay rebuilds every derived table for one trading day from the
// raw tables and replaces the prior row sets whole. Commodities whose
// quotes carry no positive open interest get no weighted row for the day;
// their seat summaries and indicators are still produced.
func (s *Service) RecomputeDay(ctx context.Context, date time.Time) error {
	start := time.Now()

	records, err := s.store.MarketRecordsByDate(ctx, date)
	if err != nil {
		return err
	}
	holdings, err := s.store.SeatHoldingsByDate(ctx, date)
	if err != nil {
		return err
	}

	// Group quotes by commodity and collect the full commodity set for the
	// day (a commodity may appear in holdings without quotes, or vice versa).
	quotesByCommodity := make(map[string][]model.MarketRecord)
	seen := make(map[string]bool)
	var commodities []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			commodities = append(commodities, name)
		}
	}
	for _, r := range records {
		name, _ := s.table.Commodity(r.Contract)
		quotesByCommodity[name] = append(quotesByCommodity[name], r)
		add(name)
	}
	for _, h := range holdings {
		name, _ := s.table.Commodity(h.Contract)
		add(name)
	}
	sort.Strings(commodities)

	var weighted []model.WeightedContract
	var summaries []model.SeatSummary
	var snapshots []model.IndicatorSnapshot

	for _, name := range commodities {
		if quotes := quotesByCommodity[name]; len(quotes) > 0 {
			w, err := synth.Synthesize(name, quotes)
			switch {
			case errors.Is(err, synth.ErrNoQualifyingData):
				slog.Debug("no qualifying quotes, skipping weighted row",
					"date", model.DayKey(date), "commodity", name)
			case err != nil:
				return err
			default:
				weighted = append(weighted, *w)
			}
		}

		sums := seat.Aggregate(date, name, s.table, holdings)
		summaries = append(summaries, sums...)
		snapshots = append(snapshots, indicator.Compute(sums)...)
	}

	if err := s.store.ReplaceWeightedContracts(ctx, date, weighted); err != nil {
		return err
	}
	if err := s.store.ReplaceSeatSummaries(ctx, date, summaries); err != nil {
		return err
	}
	if err := s.store.ReplaceIndicators(ctx, date, snapshots); err != nil {
		return err
	}

	metrics.DaysRecomputed.Inc()
	metrics.RecomputeLatency.Observe(time.Since(start).Seconds())

	slog.Info("day recomputed",
		"date", model.DayKey(date),
		"commodities", len(commodities),
		"weighted_rows", len(weighted),
		"summary_rows", len(summaries),
		"indicator_rows", len(snapshots),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:        "day_recomputed",
			Date:        model.DayKey(date),
			Commodities: commodities,
		})
	}
	return nil
}

// recomputeDays serializes recomputation of a set of affected days.
func (s *Service) recomputeDays(ctx context.Context, days map[string]time.Time) ([]string, error) {
	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, day := range keys {
		if err := s.RecomputeDay(ctx, days[day]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
