package engine

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/distribution"
	"github.com/seatflow/position-engine/internal/metrics"
	"github.com/seatflow/position-engine/internal/model"
	"github.com/seatflow/position-engine/internal/screen"
	"github.com/seatflow/position-engine/internal/trend"
)

// --- Request/Response types ---

// QuoteRow is one raw quote in an ingest batch. Commodity, when present,
// registers the contract→commodity mapping in the lookup table; quotes for
// already-registered symbols may omit it.
type QuoteRow struct {
	model.MarketRecord
	Commodity string `json:"commodity,omitempty"`
}

// IngestQuotesRequest is the JSON body for POST /ingest/quotes.
type IngestQuotesRequest struct {
	Records []QuoteRow `json:"records"`
}

// IngestHoldingsRequest is the JSON body for POST /ingest/holdings.
type IngestHoldingsRequest struct {
	Records []model.RawSeatHolding `json:"records"`
}

// RejectedRecord reports one record that failed validation, by its index in
// the batch. The rest of the batch is still applied.
type RejectedRecord struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IngestResponse is returned from both ingest endpoints.
type IngestResponse struct {
	BatchID    string           `json:"batch_id"`
	Accepted   int              `json:"accepted"`
	Rejected   []RejectedRecord `json:"rejected,omitempty"`
	Recomputed []string         `json:"recomputed_dates"`
}

// ScreenRequest is the JSON body for POST /screen.
type ScreenRequest struct {
	Config   screen.Config `json:"config"`
	Lookback int           `json:"lookback,omitempty"` // trading days of history, default 60
}

// DistributionResponse bundles one day's breakdown with the full-set split.
type DistributionResponse struct {
	Date      string                    `json:"date"`
	Commodity string                    `json:"commodity"`
	Kind      distribution.Kind         `json:"kind"`
	Slices    []model.DistributionSlice `json:"slices"`
	Split     model.LongShortSplit      `json:"split"`
}

// defaultScreenLookback is how many trading days of history feed a
// screening run when the request does not say otherwise.
const defaultScreenLookback = 60

// --- HTTP Handlers ---

// IngestQuotes handles POST /api/v1/ingest/quotes
// Validates each record individually, upserts the valid ones, and
// recomputes the derived tables for every affected date.
func (s *Service) IngestQuotes(w http.ResponseWriter, r *http.Request) {
	var req IngestQuotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	metrics.IngestBatches.WithLabelValues("quotes").Inc()

	var valid []model.MarketRecord
	var rejected []RejectedRecord
	days := make(map[string]time.Time)

	for i, row := range req.Records {
		rec := row.MarketRecord
		if err := model.ValidateMarketRecord(&rec); err != nil {
			rejected = append(rejected, RejectedRecord{Index: i, Error: err.Error()})
			continue
		}
		if row.Commodity != "" {
			s.table.Register(rec.Contract, row.Commodity)
		}
		valid = append(valid, rec)
		days[model.DayKey(rec.Date)] = rec.Date
	}
	metrics.RecordsRejected.WithLabelValues("quotes").Add(float64(len(rejected)))

	ctx := r.Context()
	if len(valid) > 0 {
		if err := s.store.UpsertMarketRecords(ctx, valid); err != nil {
			writeError(w, "failed to store quotes", http.StatusInternalServerError)
			return
		}
	}

	recomputed, err := s.recomputeDays(ctx, days)
	if err != nil {
		writeError(w, "failed to recompute derived tables", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		BatchID:    uuid.New().String(),
		Accepted:   len(valid),
		Rejected:   rejected,
		Recomputed: recomputed,
	})
}

// IngestHoldings handles POST /api/v1/ingest/holdings
func (s *Service) IngestHoldings(w http.ResponseWriter, r *http.Request) {
	var req IngestHoldingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	metrics.IngestBatches.WithLabelValues("holdings").Inc()

	var valid []model.RawSeatHolding
	var rejected []RejectedRecord
	days := make(map[string]time.Time)

	for i, h := range req.Records {
		if err := model.ValidateSeatHolding(&h); err != nil {
			rejected = append(rejected, RejectedRecord{Index: i, Error: err.Error()})
			continue
		}
		valid = append(valid, h)
		days[model.DayKey(h.Date)] = h.Date
	}
	metrics.RecordsRejected.WithLabelValues("holdings").Add(float64(len(rejected)))

	ctx := r.Context()
	if len(valid) > 0 {
		if err := s.store.UpsertSeatHoldings(ctx, valid); err != nil {
			writeError(w, "failed to store holdings", http.StatusInternalServerError)
			return
		}
	}

	recomputed, err := s.recomputeDays(ctx, days)
	if err != nil {
		writeError(w, "failed to recompute derived tables", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		BatchID:    uuid.New().String(),
		Accepted:   len(valid),
		Rejected:   rejected,
		Recomputed: recomputed,
	})
}

// GetWeighted handles GET /api/v1/commodities/{commodity}/weighted?limit=
func (s *Service) GetWeighted(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	limit := queryInt(r, "limit", 0)

	rows, err := s.store.WeightedHistory(r.Context(), commodity, limit)
	if err != nil {
		writeError(w, "failed to load weighted history", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.WeightedContract{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetSeats handles GET /api/v1/commodities/{commodity}/seats?date=
// Rows come back in their ranked (|net_vol| descending) order.
func (s *Service) GetSeats(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rows, err := s.store.SeatSummariesByDay(r.Context(), date, commodity)
	if err != nil {
		writeError(w, "failed to load seat summaries", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.SeatSummary{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetIndicators handles GET /api/v1/commodities/{commodity}/indicators?breadth=&limit=
func (s *Service) GetIndicators(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	breadth, err := model.ParseBreadth(r.URL.Query().Get("breadth"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 0)

	rows, err := s.store.IndicatorHistory(r.Context(), commodity, breadth, limit)
	if err != nil {
		writeError(w, "failed to load indicator history", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.IndicatorSnapshot{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetSeatTrend handles GET /api/v1/commodities/{commodity}/seats/{seat}/trend?window=
// Without a window it returns one point per supported window.
func (s *Service) GetSeatTrend(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	seatName := chi.URLParam(r, "seat")

	windows, ok := requestedWindows(r, trend.Windows)
	if !ok {
		writeError(w, "unsupported trend window", http.StatusBadRequest)
		return
	}

	history, err := s.store.SeatHistory(r.Context(), commodity, seatName, 0)
	if err != nil {
		writeError(w, "failed to load seat history", http.StatusInternalServerError)
		return
	}
	obs := observations(history)

	points := make([]model.TrendPoint, 0, len(windows))
	for _, win := range windows {
		p := model.TrendPoint{Commodity: commodity, Seat: seatName, Window: win}
		if len(obs) > 0 {
			p.Date = obs[len(obs)-1].Date
			p.Value = trend.Trend(obs, win)
		}
		points = append(points, p)
	}
	writeJSON(w, http.StatusOK, points)
}

// GetSeatProfit handles GET /api/v1/commodities/{commodity}/seats/{seat}/profit?window=
func (s *Service) GetSeatProfit(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	seatName := chi.URLParam(r, "seat")

	windows, ok := requestedWindows(r, trend.ProfitWindows)
	if !ok {
		writeError(w, "unsupported profit window", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	history, err := s.store.SeatHistory(ctx, commodity, seatName, 0)
	if err != nil {
		writeError(w, "failed to load seat history", http.StatusInternalServerError)
		return
	}
	prices, err := s.store.WeightedHistory(ctx, commodity, 0)
	if err != nil {
		writeError(w, "failed to load settlement history", http.StatusInternalServerError)
		return
	}

	obs := observations(history)
	settles := make(map[string]trend.Settlement, len(prices))
	for _, p := range prices {
		settles[model.DayKey(p.Date)] = trend.Settlement{Price: p.Settle, Unit: p.ContractUnit}
	}

	points := make([]model.ProfitPoint, 0, len(windows))
	for _, win := range windows {
		p := model.ProfitPoint{Commodity: commodity, Seat: seatName, Window: win, Value: decimal.Zero}
		if len(obs) > 0 {
			p.Date = obs[len(obs)-1].Date
			p.Value = trend.Profit(obs, settles, win)
		}
		points = append(points, p)
	}
	writeJSON(w, http.StatusOK, points)
}

// GetDistribution handles GET /api/v1/commodities/{commodity}/distribution?date=&kind=
func (s *Service) GetDistribution(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	kind := distribution.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = distribution.Position
	}
	if kind != distribution.Position && kind != distribution.Change {
		writeError(w, "kind must be position or change", http.StatusBadRequest)
		return
	}

	rows, err := s.store.SeatSummariesByDay(r.Context(), date, commodity)
	if err != nil {
		writeError(w, "failed to load seat summaries", http.StatusInternalServerError)
		return
	}

	slices := distribution.Slices(rows, kind)
	if slices == nil {
		slices = []model.DistributionSlice{}
	}
	writeJSON(w, http.StatusOK, DistributionResponse{
		Date:      model.DayKey(date),
		Commodity: commodity,
		Kind:      kind,
		Slices:    slices,
		Split:     distribution.Split(rows),
	})
}

// RunScreen handles POST /api/v1/screen
// Evaluates the condition config against every commodity with derived data.
func (s *Service) RunScreen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Config.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	lookback := req.Lookback
	if lookback <= 0 {
		lookback = defaultScreenLookback
	}

	ctx := r.Context()
	commodities, err := s.store.Commodities(ctx)
	if err != nil {
		writeError(w, "failed to list commodities", http.StatusInternalServerError)
		return
	}

	inputs := make([]screen.Input, 0, len(commodities))
	for _, name := range commodities {
		prices, err := s.store.WeightedHistory(ctx, name, lookback)
		if err != nil {
			writeError(w, "failed to load weighted history", http.StatusInternalServerError)
			return
		}
		var snaps []model.IndicatorSnapshot
		for _, breadth := range model.Breadths {
			rows, err := s.store.IndicatorHistory(ctx, name, breadth, lookback)
			if err != nil {
				writeError(w, "failed to load indicator history", http.StatusInternalServerError)
				return
			}
			snaps = append(snaps, rows...)
		}
		inputs = append(inputs, screen.Input{Commodity: name, Prices: prices, Indicators: snaps})
	}

	metrics.ScreenRuns.Inc()
	results := screen.Evaluate(req.Config, inputs)
	if results == nil {
		results = []model.ScreeningResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// requestedWindows resolves the ?window= parameter against the supported
// set; an empty parameter means every supported window.
func requestedWindows(r *http.Request, supported []int) ([]int, bool) {
	v := r.URL.Query().Get("window")
	if v == "" {
		return supported, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, false
	}
	for _, win := range supported {
		if n == win {
			return []int{n}, true
		}
	}
	return nil, false
}

// observations converts seat history rows into trend observations.
func observations(history []model.SeatSummary) []trend.Observation {
	obs := make([]trend.Observation, 0, len(history))
	for _, h := range history {
		obs = append(obs, trend.Observation{Date: h.Date, NetVol: h.NetVol})
	}
	return obs
}
