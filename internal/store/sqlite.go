package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/oddsmith/foresight/internal/runs"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ backtest.PriceStore = (*SQLiteStore)(nil)
var _ runs.Store = (*SQLiteStore)(nil)

// SQLiteStore implements the price and run persistence boundaries backed by
// a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	params          TEXT NOT NULL,
	start_date      INTEGER NOT NULL,
	end_date        INTEGER NOT NULL,
	initial_capital TEXT NOT NULL,
	status          TEXT NOT NULL,
	model_source    TEXT NOT NULL DEFAULT '',
	failure_reason  TEXT NOT NULL DEFAULT '',
	metrics         TEXT,
	created_at      INTEGER NOT NULL,
	completed_at    INTEGER
);

CREATE TABLE IF NOT EXISTS trades (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	market          TEXT NOT NULL,
	side            TEXT NOT NULL,
	entry_price     TEXT NOT NULL,
	exit_price      TEXT NOT NULL,
	size            TEXT NOT NULL,
	pnl             TEXT NOT NULL,
	entry_time      INTEGER NOT NULL,
	exit_time       INTEGER NOT NULL,
	signal_strength TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);

CREATE TABLE IF NOT EXISTS prices (
	market    TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	yes_price TEXT NOT NULL,
	no_price  TEXT NOT NULL,
	volume    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_market_ts ON prices(market, timestamp);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps the pragma in effect and sidesteps SQLITE_BUSY
	// under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddPrices inserts price history rows for a market.
func (s *SQLiteStore) AddPrices(ctx context.Context, marketID string, points []backtest.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO prices (market, timestamp, yes_price, no_price, volume) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, marketID, p.Timestamp.UnixMilli(),
			p.YesPrice.String(), p.NoPrice.String(), p.Volume.String()); err != nil {
			return fmt.Errorf("inserting price for %s: %w", marketID, err)
		}
	}
	return tx.Commit()
}

// GetPrices returns per-market samples inside [start, end], ordered by
// market then time, bounded by limit rows in total.
func (s *SQLiteStore) GetPrices(ctx context.Context, start, end time.Time, limit int) (map[string][]backtest.PricePoint, error) {
	query := `SELECT market, timestamp, yes_price, no_price, volume
	          FROM prices WHERE timestamp >= ? AND timestamp <= ?
	          ORDER BY market, timestamp`
	args := []any{start.UnixMilli(), end.UnixMilli()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying prices: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]backtest.PricePoint)
	for rows.Next() {
		var market string
		var ts int64
		var yes, no, volume string
		if err := rows.Scan(&market, &ts, &yes, &no, &volume); err != nil {
			return nil, err
		}
		point, err := parsePricePoint(ts, yes, no, volume)
		if err != nil {
			return nil, err
		}
		out[market] = append(out[market], point)
	}
	return out, rows.Err()
}

func parsePricePoint(ts int64, yes, no, volume string) (backtest.PricePoint, error) {
	yesPrice, err := decimal.NewFromString(yes)
	if err != nil {
		return backtest.PricePoint{}, fmt.Errorf("invalid yes price: %w", err)
	}
	noPrice, err := decimal.NewFromString(no)
	if err != nil {
		return backtest.PricePoint{}, fmt.Errorf("invalid no price: %w", err)
	}
	vol, err := decimal.NewFromString(volume)
	if err != nil {
		return backtest.PricePoint{}, fmt.Errorf("invalid volume: %w", err)
	}
	return backtest.PricePoint{
		Timestamp: time.UnixMilli(ts).UTC(),
		YesPrice:  yesPrice,
		NoPrice:   noPrice,
		Volume:    vol,
	}, nil
}

// CreateRun stores a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *runs.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	metrics, err := encodeMetrics(run.Metrics)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, strategy, params, start_date, end_date, initial_capital,
		                   status, model_source, failure_reason, metrics, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Strategy, string(params),
		run.StartDate.UnixMilli(), run.EndDate.UnixMilli(), run.InitialCapital.String(),
		string(run.Status), string(run.ModelSource), run.FailureReason,
		metrics, run.CreatedAt.UnixMilli(), nullableMilli(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun overwrites a stored run. Runs already in a terminal state are
// write-once and cannot be updated.
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *runs.Run) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, run.ID).Scan(&status)
	if err == sql.ErrNoRows {
		return runs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if runs.Status(status).Terminal() {
		return fmt.Errorf("run %s is %s and cannot be updated", run.ID, status)
	}

	metrics, err := encodeMetrics(run.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, model_source = ?, failure_reason = ?, metrics = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), string(run.ModelSource), run.FailureReason,
		metrics, nullableMilli(run.CompletedAt), run.ID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*runs.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, strategy, params, start_date, end_date, initial_capital,
		        status, model_source, failure_reason, metrics, created_at, completed_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, runs.ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first, optionally filtered by strategy.
// A limit of 0 means no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, strategy string, limit int) ([]*runs.Run, error) {
	query := `SELECT id, name, strategy, params, start_date, end_date, initial_capital,
	                 status, model_source, failure_reason, metrics, created_at, completed_at
	          FROM runs`
	var args []any
	if strategy != "" {
		query += " WHERE strategy = ?"
		args = append(args, strategy)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*runs.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and cascades to its trades.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting trades: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddTrades stores the trade set of a run in a single transaction: either
// every trade is stored or none is.
func (s *SQLiteStore) AddTrades(ctx context.Context, runID string, trades []backtest.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (id, run_id, market, side, entry_price, exit_price, size, pnl,
		                     entry_time, exit_time, signal_strength)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, t.ID, runID, t.MarketID, string(t.Side),
			t.EntryPrice.String(), t.ExitPrice.String(), t.Size.String(), t.PnL.String(),
			t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(), string(t.SignalStrength)); err != nil {
			return fmt.Errorf("inserting trade %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// GetTrades returns the trades of a run ordered by exit time.
func (s *SQLiteStore) GetTrades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, market, side, entry_price, exit_price, size, pnl,
		        entry_time, exit_time, signal_strength
		 FROM trades WHERE run_id = ? ORDER BY exit_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	trades := make([]backtest.Trade, 0)
	for rows.Next() {
		var t backtest.Trade
		var side, strength string
		var entryPrice, exitPrice, size, pnl string
		var entryTime, exitTime int64
		if err := rows.Scan(&t.ID, &t.MarketID, &side, &entryPrice, &exitPrice, &size, &pnl,
			&entryTime, &exitTime, &strength); err != nil {
			return nil, err
		}
		if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
			return nil, err
		}
		if t.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
			return nil, err
		}
		if t.Size, err = decimal.NewFromString(size); err != nil {
			return nil, err
		}
		if t.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		t.Side = backtest.Side(side)
		t.SignalStrength = backtest.SignalStrength(strength)
		t.EntryTime = time.UnixMilli(entryTime).UTC()
		t.ExitTime = time.UnixMilli(exitTime).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DeleteTrades removes all trades of a run without touching the run itself.
func (s *SQLiteStore) DeleteTrades(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, runID)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*runs.Run, error) {
	var run runs.Run
	var params, status, source string
	var initialCapital string
	var metrics sql.NullString
	var startDate, endDate, createdAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&run.ID, &run.Name, &run.Strategy, &params, &startDate, &endDate,
		&initialCapital, &status, &source, &run.FailureReason, &metrics, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if run.InitialCapital, err = decimal.NewFromString(initialCapital); err != nil {
		return nil, fmt.Errorf("decoding initial capital: %w", err)
	}
	if metrics.Valid && metrics.String != "" {
		var m backtest.Metrics
		if err := json.Unmarshal([]byte(metrics.String), &m); err != nil {
			return nil, fmt.Errorf("decoding metrics: %w", err)
		}
		run.Metrics = &m
	}

	run.Status = runs.Status(status)
	run.ModelSource = backtest.ModelSource(source)
	run.StartDate = time.UnixMilli(startDate).UTC()
	run.EndDate = time.UnixMilli(endDate).UTC()
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if completedAt.Valid {
		run.CompletedAt = time.UnixMilli(completedAt.Int64).UTC()
	}
	return &run, nil
}

func encodeMetrics(m *backtest.Metrics) (any, error) {
	if m == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metrics: %w", err)
	}
	return string(encoded), nil
}

func nullableMilli(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
