package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seatflow/position-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu sync.RWMutex

	quotes   map[string]map[string]model.MarketRecord     // day → contract → row
	holdings map[string]map[[2]string]model.RawSeatHolding // day → (contract, seat) → row

	weighted   map[string][]model.WeightedContract  // day → rows
	summaries  map[string][]model.SeatSummary       // day → rows in ranked order
	indicators map[string][]model.IndicatorSnapshot // day → rows
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotes:     make(map[string]map[string]model.MarketRecord),
		holdings:   make(map[string]map[[2]string]model.RawSeatHolding),
		weighted:   make(map[string][]model.WeightedContract),
		summaries:  make(map[string][]model.SeatSummary),
		indicators: make(map[string][]model.IndicatorSnapshot),
	}
}

func (s *MemoryStore) UpsertMarketRecords(_ context.Context, records []model.MarketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		day := model.DayKey(r.Date)
		if s.quotes[day] == nil {
			s.quotes[day] = make(map[string]model.MarketRecord)
		}
		s.quotes[day][r.Contract] = r
	}
	return nil
}

func (s *MemoryStore) UpsertSeatHoldings(_ context.Context, holdings []model.RawSeatHolding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range holdings {
		day := model.DayKey(h.Date)
		if s.holdings[day] == nil {
			s.holdings[day] = make(map[[2]string]model.RawSeatHolding)
		}
		s.holdings[day][[2]string{h.Contract, h.Seat}] = h
	}
	return nil
}

func (s *MemoryStore) MarketRecordsByDate(_ context.Context, date time.Time) ([]model.MarketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := s.quotes[model.DayKey(date)]
	records := make([]model.MarketRecord, 0, len(day))
	for _, r := range day {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Contract < records[j].Contract
	})
	return records, nil
}

func (s *MemoryStore) SeatHoldingsByDate(_ context.Context, date time.Time) ([]model.RawSeatHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := s.holdings[model.DayKey(date)]
	rows := make([]model.RawSeatHolding, 0, len(day))
	for _, h := range day {
		rows = append(rows, h)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Contract != rows[j].Contract {
			return rows[i].Contract < rows[j].Contract
		}
		return rows[i].Seat < rows[j].Seat
	})
	return rows, nil
}

func (s *MemoryStore) ReplaceWeightedContracts(_ context.Context, date time.Time, rows []model.WeightedContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weighted[model.DayKey(date)] = append([]model.WeightedContract(nil), rows...)
	return nil
}

func (s *MemoryStore) ReplaceSeatSummaries(_ context.Context, date time.Time, rows []model.SeatSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[model.DayKey(date)] = append([]model.SeatSummary(nil), rows...)
	return nil
}

func (s *MemoryStore) ReplaceIndicators(_ context.Context, date time.Time, rows []model.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators[model.DayKey(date)] = append([]model.IndicatorSnapshot(nil), rows...)
	return nil
}

// sortedDays returns the day keys of a map in ascending order.
func sortedDays[T any](m map[string][]T) []string {
	days := make([]string, 0, len(m))
	for day := range m {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

func (s *MemoryStore) WeightedHistory(_ context.Context, commodity string, limit int) ([]model.WeightedContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.WeightedContract
	for _, day := range sortedDays(s.weighted) {
		for _, w := range s.weighted[day] {
			if w.Commodity == commodity {
				rows = append(rows, w)
			}
		}
	}
	return tail(rows, limit), nil
}

func (s *MemoryStore) SeatSummariesByDay(_ context.Context, date time.Time, commodity string) ([]model.SeatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.SeatSummary
	for _, r := range s.summaries[model.DayKey(date)] {
		if r.Commodity == commodity {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s *MemoryStore) SeatHistory(_ context.Context, commodity, seat string, limit int) ([]model.SeatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.SeatSummary
	for _, day := range sortedDays(s.summaries) {
		for _, r := range s.summaries[day] {
			if r.Commodity == commodity && r.Seat == seat {
				rows = append(rows, r)
			}
		}
	}
	return tail(rows, limit), nil
}

func (s *MemoryStore) IndicatorHistory(_ context.Context, commodity string, breadth model.Breadth, limit int) ([]model.IndicatorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.IndicatorSnapshot
	for _, day := range sortedDays(s.indicators) {
		for _, r := range s.indicators[day] {
			if r.Commodity == commodity && r.Breadth == breadth {
				rows = append(rows, r)
			}
		}
	}
	return tail(rows, limit), nil
}

func (s *MemoryStore) Commodities(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, rows := range s.weighted {
		for _, w := range rows {
			seen[w.Commodity] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
