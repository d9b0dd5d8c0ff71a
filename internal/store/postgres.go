package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Prices are stored as NUMERIC for exact decimal precision; derived-table
// day replacement runs inside one transaction so readers see old-or-new,
// never a mix.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertMarketRecords(ctx context.Context, records []model.MarketRecord) error {
	for _, r := range records {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO market_records
			   (date, contract, open, high, low, close, settle, volume, open_interest, contract_unit)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10::NUMERIC)
			 ON CONFLICT (date, contract) DO UPDATE SET
			   open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			   close = EXCLUDED.close, settle = EXCLUDED.settle,
			   volume = EXCLUDED.volume, open_interest = EXCLUDED.open_interest,
			   contract_unit = EXCLUDED.contract_unit`,
			r.Date, r.Contract,
			r.Open.String(), r.High.String(), r.Low.String(), r.Close.String(), r.Settle.String(),
			r.Volume, r.OpenInterest, r.ContractUnit.String(),
		)
		if err != nil {
			return fmt.Errorf("upsert quote %s/%s: %w", model.DayKey(r.Date), r.Contract, err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertSeatHoldings(ctx context.Context, holdings []model.RawSeatHolding) error {
	for _, h := range holdings {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO seat_holdings
			   (date, contract, seat, long_vol, short_vol, long_chg, short_chg)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (date, contract, seat) DO UPDATE SET
			   long_vol = EXCLUDED.long_vol, short_vol = EXCLUDED.short_vol,
			   long_chg = EXCLUDED.long_chg, short_chg = EXCLUDED.short_chg`,
			h.Date, h.Contract, h.Seat, h.LongVol, h.ShortVol, h.LongChg, h.ShortChg,
		)
		if err != nil {
			return fmt.Errorf("upsert holding %s/%s/%s: %w", model.DayKey(h.Date), h.Contract, h.Seat, err)
		}
	}
	return nil
}

func (s *PostgresStore) MarketRecordsByDate(ctx context.Context, date time.Time) ([]model.MarketRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, contract,
		        open::TEXT, high::TEXT, low::TEXT, close::TEXT, settle::TEXT,
		        volume, open_interest, contract_unit::TEXT
		 FROM market_records WHERE date = $1 ORDER BY contract`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.MarketRecord
	for rows.Next() {
		var r model.MarketRecord
		var open, high, low, closep, settle, unit string
		if err := rows.Scan(&r.Date, &r.Contract,
			&open, &high, &low, &closep, &settle,
			&r.Volume, &r.OpenInterest, &unit); err != nil {
			return nil, err
		}
		r.Open, _ = decimal.NewFromString(open)
		r.High, _ = decimal.NewFromString(high)
		r.Low, _ = decimal.NewFromString(low)
		r.Close, _ = decimal.NewFromString(closep)
		r.Settle, _ = decimal.NewFromString(settle)
		r.ContractUnit, _ = decimal.NewFromString(unit)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) SeatHoldingsByDate(ctx context.Context, date time.Time) ([]model.RawSeatHolding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, contract, seat, long_vol, short_vol, long_chg, short_chg
		 FROM seat_holdings WHERE date = $1 ORDER BY contract, seat`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.RawSeatHolding
	for rows.Next() {
		var h model.RawSeatHolding
		if err := rows.Scan(&h.Date, &h.Contract, &h.Seat,
			&h.LongVol, &h.ShortVol, &h.LongChg, &h.ShortChg); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// replaceDay deletes a table's rows for one date and re-inserts inside one
// transaction.
func (s *PostgresStore) replaceDay(ctx context.Context, date time.Time, table string, insert func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE date = $1`, table), date); err != nil {
		return fmt.Errorf("replace %s for %s: %w", table, model.DayKey(date), err)
	}
	if err := insert(tx); err != nil {
		return fmt.Errorf("replace %s for %s: %w", table, model.DayKey(date), err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ReplaceWeightedContracts(ctx context.Context, date time.Time, rows []model.WeightedContract) error {
	return s.replaceDay(ctx, date, "weighted_contracts", func(tx pgx.Tx) error {
		for _, w := range rows {
			_, err := tx.Exec(ctx,
				`INSERT INTO weighted_contracts
				   (date, commodity, open, high, low, close, settle, volume, open_interest, contract_unit)
				 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10::NUMERIC)`,
				w.Date, w.Commodity,
				w.Open.String(), w.High.String(), w.Low.String(), w.Close.String(), w.Settle.String(),
				w.Volume, w.OpenInterest, w.ContractUnit.String(),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceSeatSummaries(ctx context.Context, date time.Time, rows []model.SeatSummary) error {
	return s.replaceDay(ctx, date, "seat_summaries", func(tx pgx.Tx) error {
		// rank preserves the aggregator's |net_vol|-descending order,
		// including tie order, across reads.
		for i, r := range rows {
			_, err := tx.Exec(ctx,
				`INSERT INTO seat_summaries
				   (date, commodity, seat, rank, long_vol, short_vol, long_chg, short_chg, net_vol, net_chg)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				r.Date, r.Commodity, r.Seat, i,
				r.LongVol, r.ShortVol, r.LongChg, r.ShortChg, r.NetVol, r.NetChg,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceIndicators(ctx context.Context, date time.Time, rows []model.IndicatorSnapshot) error {
	return s.replaceDay(ctx, date, "indicator_snapshots", func(tx pgx.Tx) error {
		for _, r := range rows {
			_, err := tx.Exec(ctx,
				`INSERT INTO indicator_snapshots
				   (date, commodity, breadth,
				    real_long, real_short, real_diff,
				    net_long, net_short, net_diff,
				    add_long, add_short, reduce_long, reduce_short)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				r.Date, r.Commodity, int(r.Breadth),
				r.RealLong, r.RealShort, r.RealDiff,
				r.NetLong, r.NetShort, r.NetDiff,
				r.AddLong, r.AddShort, r.ReduceLong, r.ReduceShort,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) WeightedHistory(ctx context.Context, commodity string, limit int) ([]model.WeightedContract, error) {
	query := `SELECT date, commodity,
	                 open::TEXT, high::TEXT, low::TEXT, close::TEXT, settle::TEXT,
	                 volume, open_interest, contract_unit::TEXT
	          FROM weighted_contracts WHERE commodity = $1 ORDER BY date DESC`
	args := []any{commodity}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.WeightedContract
	for rows.Next() {
		var w model.WeightedContract
		var open, high, low, closep, settle, unit string
		if err := rows.Scan(&w.Date, &w.Commodity,
			&open, &high, &low, &closep, &settle,
			&w.Volume, &w.OpenInterest, &unit); err != nil {
			return nil, err
		}
		w.Open, _ = decimal.NewFromString(open)
		w.High, _ = decimal.NewFromString(high)
		w.Low, _ = decimal.NewFromString(low)
		w.Close, _ = decimal.NewFromString(closep)
		w.Settle, _ = decimal.NewFromString(settle)
		w.ContractUnit, _ = decimal.NewFromString(unit)
		history = append(history, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(history) // DESC + LIMIT picked the newest; callers want ascending
	return history, nil
}

func (s *PostgresStore) SeatSummariesByDay(ctx context.Context, date time.Time, commodity string) ([]model.SeatSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, commodity, seat, long_vol, short_vol, long_chg, short_chg, net_vol, net_chg
		 FROM seat_summaries WHERE date = $1 AND commodity = $2 ORDER BY rank`, date, commodity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (s *PostgresStore) SeatHistory(ctx context.Context, commodity, seat string, limit int) ([]model.SeatSummary, error) {
	query := `SELECT date, commodity, seat, long_vol, short_vol, long_chg, short_chg, net_vol, net_chg
	          FROM seat_summaries WHERE commodity = $1 AND seat = $2 ORDER BY date DESC`
	args := []any{commodity, seat}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	reverse(history)
	return history, nil
}

func scanSummaries(rows pgx.Rows) ([]model.SeatSummary, error) {
	var summaries []model.SeatSummary
	for rows.Next() {
		var r model.SeatSummary
		if err := rows.Scan(&r.Date, &r.Commodity, &r.Seat,
			&r.LongVol, &r.ShortVol, &r.LongChg, &r.ShortChg,
			&r.NetVol, &r.NetChg); err != nil {
			return nil, err
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

func (s *PostgresStore) IndicatorHistory(ctx context.Context, commodity string, breadth model.Breadth, limit int) ([]model.IndicatorSnapshot, error) {
	query := `SELECT date, commodity, breadth,
	                 real_long, real_short, real_diff,
	                 net_long, net_short, net_diff,
	                 add_long, add_short, reduce_long, reduce_short
	          FROM indicator_snapshots WHERE commodity = $1 AND breadth = $2 ORDER BY date DESC`
	args := []any{commodity, int(breadth)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.IndicatorSnapshot
	for rows.Next() {
		var r model.IndicatorSnapshot
		var breadthInt int
		if err := rows.Scan(&r.Date, &r.Commodity, &breadthInt,
			&r.RealLong, &r.RealShort, &r.RealDiff,
			&r.NetLong, &r.NetShort, &r.NetDiff,
			&r.AddLong, &r.AddShort, &r.ReduceLong, &r.ReduceShort); err != nil {
			return nil, err
		}
		r.Breadth = model.Breadth(breadthInt)
		history = append(history, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(history)
	return history, nil
}

func (s *PostgresStore) Commodities(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT commodity FROM weighted_contracts ORDER BY commodity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
