package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"priceaction/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	symbol          TEXT    NOT NULL,
	interval        TEXT    NOT NULL,
	from_ms         INTEGER NOT NULL,
	to_ms           INTEGER NOT NULL,
	bars            INTEGER NOT NULL,
	initial_capital REAL    NOT NULL,
	balance         REAL    NOT NULL,
	wins            INTEGER NOT NULL,
	losses          INTEGER NOT NULL,
	total_fee       REAL    NOT NULL,
	total_profit    REAL    NOT NULL,
	created_at_ms   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT    NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	side        TEXT    NOT NULL,
	entry_time  INTEGER NOT NULL,
	entry_price REAL    NOT NULL,
	stop_loss   REAL    NOT NULL,
	take_profit REAL    NOT NULL,
	size        REAL    NOT NULL,
	entry_fee   REAL    NOT NULL,
	exit_time   INTEGER NOT NULL,
	exit_price  REAL    NOT NULL,
	exit_fee    REAL    NOT NULL,
	outcome     TEXT    NOT NULL,
	profit      REAL    NOT NULL,
	wins        INTEGER NOT NULL,
	losses      INTEGER NOT NULL,
	balance     REAL    NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at_ms);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// journal tables if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts run into the runs table.
func (s *SQLiteStore) SaveRun(ctx context.Context, run domain.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, interval, from_ms, to_ms, bars,
			initial_capital, balance, wins, losses, total_fee, total_profit, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Interval, run.From.UnixMilli(), run.To.UnixMilli(), run.Bars,
		run.Summary.InitialCapital, run.Summary.Balance, run.Summary.Wins, run.Summary.Losses,
		run.Summary.TotalFee, run.Summary.TotalProfit, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// SaveTrades inserts trades for runID in one transaction, numbering them in
// the given order.
func (s *SQLiteStore) SaveTrades(ctx context.Context, runID string, trades []domain.ClosedTrade) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, seq, side, entry_time, entry_price, stop_loss, take_profit,
			size, entry_fee, exit_time, exit_price, exit_fee, outcome, profit, wins, losses, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range trades {
		var exit float64
		if c.ExitPrice != nil {
			exit = *c.ExitPrice
		}
		if _, err = stmt.ExecContext(ctx,
			runID, i, c.Side.String(), c.EntryTime, c.EntryPrice, c.StopLoss, c.TakeProfit,
			c.Size, c.EntryFee, c.ExitTime, exit, c.ExitFee, string(c.Outcome), c.Profit,
			c.Wins, c.Losses, c.Balance,
		); err != nil {
			return fmt.Errorf("saving trade %d of run %s: %w", i, runID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, symbol, interval, from_ms, to_ms, bars, initial_capital, balance,
	wins, losses, total_fee, total_profit, created_at_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		r                    domain.Run
		fromMs, toMs, doneMs int64
	)
	err := sc.Scan(&r.ID, &r.Symbol, &r.Interval, &fromMs, &toMs, &r.Bars,
		&r.Summary.InitialCapital, &r.Summary.Balance, &r.Summary.Wins, &r.Summary.Losses,
		&r.Summary.TotalFee, &r.Summary.TotalProfit, &doneMs)
	if err != nil {
		return r, err
	}
	r.From = time.UnixMilli(fromMs).UTC()
	r.To = time.UnixMilli(toMs).UTC()
	r.CreatedAt = time.UnixMilli(doneMs).UTC()
	return r, nil
}

// GetRun returns the run with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetTrades returns the closed trades of runID in closing order.
func (s *SQLiteStore) GetTrades(ctx context.Context, runID string) ([]domain.ClosedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT side, entry_time, entry_price, stop_loss, take_profit, size, entry_fee,
			exit_time, exit_price, exit_fee, outcome, profit, wins, losses, balance
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		var (
			c         domain.ClosedTrade
			side, out string
			exit      float64
		)
		if err := rows.Scan(&side, &c.EntryTime, &c.EntryPrice, &c.StopLoss, &c.TakeProfit,
			&c.Size, &c.EntryFee, &c.ExitTime, &exit, &c.ExitFee, &out, &c.Profit,
			&c.Wins, &c.Losses, &c.Balance); err != nil {
			return nil, err
		}
		if side == domain.Short.String() {
			c.Side = domain.Short
		}
		c.ExitPrice = &exit
		c.Outcome = domain.Outcome(out)
		trades = append(trades, c)
	}
	return trades, rows.Err()
}
