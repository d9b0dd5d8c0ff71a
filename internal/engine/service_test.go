package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/contract"
	"github.com/seatflow/position-engine/internal/engine"
	"github.com/seatflow/position-engine/internal/model"
	"github.com/seatflow/position-engine/internal/screen"
	"github.com/seatflow/position-engine/internal/store"
)

type testEnv struct {
	store  *store.MemoryStore
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	svc := engine.NewService(st, contract.NewTable(), nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest/quotes", svc.IngestQuotes)
		r.Post("/ingest/holdings", svc.IngestHoldings)
		r.Get("/commodities/{commodity}/weighted", svc.GetWeighted)
		r.Get("/commodities/{commodity}/seats", svc.GetSeats)
		r.Get("/commodities/{commodity}/indicators", svc.GetIndicators)
		r.Get("/commodities/{commodity}/seats/{seat}/trend", svc.GetSeatTrend)
		r.Get("/commodities/{commodity}/seats/{seat}/profit", svc.GetSeatProfit)
		r.Get("/commodities/{commodity}/distribution", svc.GetDistribution)
		r.Post("/screen", svc.RunScreen)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{store: st, server: server}
}

func (e *testEnv) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func quote(date, code, commodity string, close float64, volume, oi int64) engine.QuoteRow {
	return engine.QuoteRow{
		MarketRecord: model.MarketRecord{
			Date:         day(date),
			Contract:     code,
			Open:         d(close),
			High:         d(close),
			Low:          d(close),
			Close:        d(close),
			Settle:       d(close),
			Volume:       volume,
			OpenInterest: oi,
			ContractUnit: d(1),
		},
		Commodity: commodity,
	}
}

func holding(date, code, seat string, longVol, shortVol, longChg, shortChg int64) model.RawSeatHolding {
	return model.RawSeatHolding{
		Date:     day(date),
		Contract: code,
		Seat:     seat,
		LongVol:  longVol,
		ShortVol: shortVol,
		LongChg:  longChg,
		ShortChg: shortChg,
	}
}

func TestIngestQuotes_SynthesizesWeightedContract(t *testing.T) {
	env := newTestEnv(t)

	req := engine.IngestQuotesRequest{Records: []engine.QuoteRow{
		quote("2025-08-01", "cu2409", "copper", 10, 5, 100),
		quote("2025-08-01", "cu2501", "copper", 20, 7, 300),
	}}
	var resp engine.IngestResponse
	if status := env.post(t, "/api/v1/ingest/quotes", req, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Accepted != 2 || len(resp.Rejected) != 0 {
		t.Fatalf("expected 2 accepted, got %+v", resp)
	}
	if len(resp.Recomputed) != 1 || resp.Recomputed[0] != "2025-08-01" {
		t.Fatalf("expected recompute of 2025-08-01, got %v", resp.Recomputed)
	}
	if resp.BatchID == "" {
		t.Error("expected a batch id")
	}

	var rows []model.WeightedContract
	if status := env.get(t, "/api/v1/commodities/copper/weighted", &rows); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 weighted row, got %d", len(rows))
	}
	w := rows[0]
	// (10*100 + 20*300) / 400 = 17.5
	if !w.Close.Equal(d(17.5)) {
		t.Errorf("expected weighted close 17.5, got %s", w.Close)
	}
	if w.Volume != 12 || w.OpenInterest != 400 {
		t.Errorf("expected plain sums volume=12 oi=400, got %d/%d", w.Volume, w.OpenInterest)
	}
}

func TestIngestQuotes_RejectsBadRecordsIndividually(t *testing.T) {
	env := newTestEnv(t)

	missingContract := quote("2025-08-01", "", "copper", 10, 5, 100)
	negativeVolume := quote("2025-08-01", "cu2501", "copper", 10, -5, 100)

	req := engine.IngestQuotesRequest{Records: []engine.QuoteRow{
		quote("2025-08-01", "cu2409", "copper", 10, 5, 100),
		missingContract,
		negativeVolume,
	}}
	var resp engine.IngestResponse
	if status := env.post(t, "/api/v1/ingest/quotes", req, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Accepted != 1 {
		t.Errorf("expected 1 accepted, got %d", resp.Accepted)
	}
	if len(resp.Rejected) != 2 || resp.Rejected[0].Index != 1 || resp.Rejected[1].Index != 2 {
		t.Errorf("expected rejections at indexes 1 and 2, got %+v", resp.Rejected)
	}

	// The valid record still produced a derived row.
	rows, err := env.store.WeightedHistory(context.Background(), "copper", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("expected the valid record to be applied, got %d rows", len(rows))
	}
}

func TestIngestHoldings_BuildsRankedSummariesAndIndicators(t *testing.T) {
	env := newTestEnv(t)

	// Register the contract→commodity mapping through a quote first.
	env.post(t, "/api/v1/ingest/quotes", engine.IngestQuotesRequest{Records: []engine.QuoteRow{
		quote("2025-08-01", "cu2409", "copper", 10, 5, 100),
	}}, nil)

	req := engine.IngestHoldingsRequest{Records: []model.RawSeatHolding{
		holding("2025-08-01", "cu2409", "seat-a", 100, 20, 5, 0),
		holding("2025-08-01", "cu2501", "seat-a", 10, 0, 0, 0),
		holding("2025-08-01", "cu2409", "seat-b", 0, 50, 0, 3),
	}}
	var resp engine.IngestResponse
	if status := env.post(t, "/api/v1/ingest/holdings", req, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Accepted != 3 {
		t.Fatalf("expected 3 accepted, got %+v", resp)
	}

	var seats []model.SeatSummary
	if status := env.get(t, "/api/v1/commodities/copper/seats?date=2025-08-01", &seats); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(seats) != 2 {
		t.Fatalf("expected 2 seats, got %d", len(seats))
	}
	// seat-a: net 110-20=90 across both contracts; seat-b: net -50.
	if seats[0].Seat != "seat-a" || seats[0].NetVol != 90 {
		t.Errorf("expected seat-a net 90 ranked first, got %+v", seats[0])
	}
	if seats[1].Seat != "seat-b" || seats[1].NetVol != -50 {
		t.Errorf("expected seat-b net -50 ranked second, got %+v", seats[1])
	}

	var snaps []model.IndicatorSnapshot
	if status := env.get(t, "/api/v1/commodities/copper/indicators?breadth=10", &snaps); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	s := snaps[0]
	if s.NetLong != 90 || s.NetShort != 50 || s.NetDiff != 40 {
		t.Errorf("expected net 90/50/40, got %d/%d/%d", s.NetLong, s.NetShort, s.NetDiff)
	}
}

func TestIngest_RecomputeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	req := engine.IngestHoldingsRequest{Records: []model.RawSeatHolding{
		holding("2025-08-01", "cu2409", "seat-a", 100, 20, 0, 0),
		holding("2025-08-01", "cu2409", "seat-b", 0, 50, 0, 0),
	}}
	env.post(t, "/api/v1/ingest/holdings", req, nil)
	env.post(t, "/api/v1/ingest/holdings", req, nil)

	rows, err := env.store.SeatSummariesByDay(context.Background(), day("2025-08-01"), "cu")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("re-ingesting the same batch must not duplicate rows, got %d", len(rows))
	}
}

func TestGetSeats_RequiresDate(t *testing.T) {
	env := newTestEnv(t)
	if status := env.get(t, "/api/v1/commodities/copper/seats", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 without date, got %d", status)
	}
}

func TestGetIndicators_InvalidBreadth(t *testing.T) {
	env := newTestEnv(t)
	if status := env.get(t, "/api/v1/commodities/copper/indicators?breadth=7", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for breadth=7, got %d", status)
	}
}

func TestGetWeighted_UnknownCommodityReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)

	var rows []model.WeightedContract
	if status := env.get(t, "/api/v1/commodities/nothing/weighted", &rows); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty history, got %v", rows)
	}
}

func TestGetSeatTrend_ComputesWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	nets := []int64{1, 2, 3, 4, 5, 10}
	for i, net := range nets {
		date := day("2025-08-01").AddDate(0, 0, i)
		rows := []model.SeatSummary{{Date: date, Commodity: "copper", Seat: "s1", NetVol: net}}
		if err := env.store.ReplaceSeatSummaries(ctx, date, rows); err != nil {
			t.Fatal(err)
		}
	}

	var points []model.TrendPoint
	if status := env.get(t, "/api/v1/commodities/copper/seats/s1/trend?window=5", &points); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	// today=10, prior 5 days min=1 max=5 → max(9, 5) = 9.
	if points[0].Window != 5 || points[0].Value != 9 {
		t.Errorf("expected window 5 value 9, got %+v", points[0])
	}
}

func TestGetSeatTrend_UnsupportedWindow(t *testing.T) {
	env := newTestEnv(t)
	if status := env.get(t, "/api/v1/commodities/copper/seats/s1/trend?window=7", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for window=7, got %d", status)
	}
}

func TestGetSeatTrend_DefaultReturnsAllWindows(t *testing.T) {
	env := newTestEnv(t)

	var points []model.TrendPoint
	if status := env.get(t, "/api/v1/commodities/copper/seats/s1/trend", &points); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(points) != 3 {
		t.Fatalf("expected one point per supported window, got %d", len(points))
	}
	for _, p := range points {
		if p.Value != 0 {
			t.Errorf("no history must yield 0, got %+v", p)
		}
	}
}

func TestGetSeatProfit_MarkToSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	days := []struct {
		date   string
		net    int64
		settle float64
	}{
		{"2025-08-01", 10, 100},
		{"2025-08-02", 12, 110},
	}
	for _, dd := range days {
		date := day(dd.date)
		sums := []model.SeatSummary{{Date: date, Commodity: "copper", Seat: "s1", NetVol: dd.net}}
		if err := env.store.ReplaceSeatSummaries(ctx, date, sums); err != nil {
			t.Fatal(err)
		}
		weighted := []model.WeightedContract{{
			Date: date, Commodity: "copper", Settle: d(dd.settle), ContractUnit: d(1),
		}}
		if err := env.store.ReplaceWeightedContracts(ctx, date, weighted); err != nil {
			t.Fatal(err)
		}
	}

	var points []model.ProfitPoint
	if status := env.get(t, "/api/v1/commodities/copper/seats/s1/profit?window=15", &points); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	// 12*110 - 10*100 = 320.
	if !points[0].Value.Equal(d(320)) {
		t.Errorf("expected profit 320, got %s", points[0].Value)
	}
}

func TestGetDistribution_SlicesAndSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := day("2025-08-01")

	rows := []model.SeatSummary{
		{Date: date, Commodity: "copper", Seat: "a", LongVol: 75, NetVol: 75},
		{Date: date, Commodity: "copper", Seat: "b", ShortVol: 25, NetVol: -25},
	}
	if err := env.store.ReplaceSeatSummaries(ctx, date, rows); err != nil {
		t.Fatal(err)
	}

	var resp engine.DistributionResponse
	if status := env.get(t, "/api/v1/commodities/copper/distribution?date=2025-08-01", &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Date != "2025-08-01" || resp.Commodity != "copper" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if len(resp.Slices) != 2 || resp.Slices[0].Ratio != 75 {
		t.Errorf("expected slices 75/25, got %+v", resp.Slices)
	}
	if resp.Split.LongPct != 75 || resp.Split.ShortPct != 25 {
		t.Errorf("expected split 75/25, got %+v", resp.Split)
	}
}

func TestGetDistribution_RejectsBadKind(t *testing.T) {
	env := newTestEnv(t)
	if status := env.get(t, "/api/v1/commodities/copper/distribution?date=2025-08-01&kind=bogus", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad kind, got %d", status)
	}
}

func TestRunScreen_MatchesPriceCondition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		date := day("2025-08-01").AddDate(0, 0, i)
		rows := []model.WeightedContract{{
			Date: date, Commodity: "copper", Close: d(float64(10 + i)),
		}}
		if err := env.store.ReplaceWeightedContracts(ctx, date, rows); err != nil {
			t.Fatal(err)
		}
	}

	req := engine.ScreenRequest{Config: screen.Config{
		Price: []screen.PriceCondition{{
			Name: "new-high-5", Enabled: true, Window: 5, Extremum: screen.High, Weight: 10,
		}},
	}}
	var results []model.ScreeningResult
	if status := env.post(t, "/api/v1/screen", req, &results); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Commodity != "copper" || results[0].Score != 10 {
		t.Errorf("expected copper score 10, got %+v", results[0])
	}
	if len(results[0].Matched) != 1 || results[0].Matched[0] != "new-high-5" {
		t.Errorf("expected matched [new-high-5], got %v", results[0].Matched)
	}
}

func TestRunScreen_RejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t)

	req := engine.ScreenRequest{Config: screen.Config{
		Price: []screen.PriceCondition{{
			Name: "bad-window", Enabled: true, Window: 7, Extremum: screen.High, Weight: 10,
		}},
	}}
	if status := env.post(t, "/api/v1/screen", req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported window, got %d", status)
	}
}

func TestIngestQuotes_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/ingest/quotes", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestIngestQuotes_MultipleDaysRecomputed(t *testing.T) {
	env := newTestEnv(t)

	req := engine.IngestQuotesRequest{Records: []engine.QuoteRow{
		quote("2025-08-02", "cu2409", "copper", 10, 5, 100),
		quote("2025-08-01", "cu2409", "copper", 11, 5, 100),
	}}
	var resp engine.IngestResponse
	if status := env.post(t, "/api/v1/ingest/quotes", req, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	want := []string{"2025-08-01", "2025-08-02"}
	if fmt.Sprint(resp.Recomputed) != fmt.Sprint(want) {
		t.Errorf("expected recomputed %v in order, got %v", want, resp.Recomputed)
	}
}
