package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed trade-history store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the trade-history table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS swap_trades (
			id              TEXT PRIMARY KEY,
			day             INT NOT NULL,
			market          TEXT NOT NULL,
			direction       TEXT NOT NULL,
			entry_price     NUMERIC NOT NULL,
			exit_price      NUMERIC NOT NULL,
			notional_dv01   NUMERIC NOT NULL,
			final_pl        NUMERIC NOT NULL,
			counterparty_pl NUMERIC NOT NULL,
			status          TEXT NOT NULL,
			timestamp       TIMESTAMPTZ NOT NULL,
			seq             BIGSERIAL
		)`)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, r *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO swap_trades (id, day, market, direction, entry_price, exit_price, notional_dv01, final_pl, counterparty_pl, status, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11)`,
		r.ID, r.Day, r.Market, string(r.Direction),
		r.EntryPrice.String(), r.ExitPrice.String(), r.NotionalDV01.String(),
		r.FinalPL.String(), r.CounterpartyPL.String(),
		string(r.Status), r.Timestamp,
	)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, market, direction,
		        entry_price::TEXT, exit_price::TEXT, notional_dv01::TEXT,
		        final_pl::TEXT, counterparty_pl::TEXT,
		        status, timestamp
		 FROM swap_trades ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func (s *PostgresStore) ListByMarket(ctx context.Context, market string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, market, direction,
		        entry_price::TEXT, exit_price::TEXT, notional_dv01::TEXT,
		        final_pl::TEXT, counterparty_pl::TEXT,
		        status, timestamp
		 FROM swap_trades WHERE market = $1 ORDER BY seq`, market)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// scanTradeRecords reads pgx rows into TradeRecord slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTradeRecords(rows pgxRows) ([]model.TradeRecord, error) {
	var records []model.TradeRecord
	for rows.Next() {
		var r model.TradeRecord
		var direction, status string
		var entryS, exitS, dv01S, finalS, cptyS string

		if err := rows.Scan(&r.ID, &r.Day, &r.Market, &direction,
			&entryS, &exitS, &dv01S, &finalS, &cptyS,
			&status, &r.Timestamp); err != nil {
			return nil, err
		}

		r.Direction = model.Direction(direction)
		r.Status = model.TradeStatus(status)
		r.EntryPrice, _ = decimal.NewFromString(entryS)
		r.ExitPrice, _ = decimal.NewFromString(exitS)
		r.NotionalDV01, _ = decimal.NewFromString(dv01S)
		r.FinalPL, _ = decimal.NewFromString(finalS)
		r.CounterpartyPL, _ = decimal.NewFromString(cptyS)

		records = append(records, r)
	}
	return records, rows.Err()
}
