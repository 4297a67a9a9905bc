package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backtestlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ RunStore = (*SQLiteStore)(nil)

const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		strategy        TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		start_date      TEXT NOT NULL,
		end_date        TEXT NOT NULL,
		params          TEXT NOT NULL,
		initial_capital REAL NOT NULL,
		final_capital   REAL NOT NULL,
		total_return    REAL NOT NULL,
		sharpe_ratio    REAL NOT NULL,
		max_drawdown    REAL NOT NULL,
		total_trades    INTEGER NOT NULL,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS run_trades (
		run_id      TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		entry_date  TEXT NOT NULL,
		entry_price REAL NOT NULL,
		direction   TEXT NOT NULL,
		size        REAL NOT NULL,
		exit_date   TEXT NOT NULL,
		exit_price  REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		pnl_dollars REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema when missing, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and its trades in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.RunRecord, trades []domain.Trade) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, strategy, symbol, start_date, end_date, params,
		initial_capital, final_capital, total_return, sharpe_ratio, max_drawdown,
		total_trades, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Symbol,
		run.Start.Format(dateLayout), run.End.Format(dateLayout), string(params),
		run.InitialCapital, run.FinalCapital, run.TotalReturn, run.SharpeRatio, run.MaxDrawdown,
		run.TotalTrades, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for i, t := range trades {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_trades (
			run_id, seq, entry_date, entry_price, direction, size,
			exit_date, exit_price, pnl_percent, pnl_dollars
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, t.EntryDate.Format(dateLayout), t.EntryPrice, string(t.Direction), t.Size,
			t.ExitDate.Format(dateLayout), t.ExitPrice, t.PnLPercent, t.PnLDollars,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, run.ID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, strategy, symbol, start_date, end_date, params,
	initial_capital, final_capital, total_return, sharpe_ratio, max_drawdown,
	total_trades, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var (
		r            domain.RunRecord
		start, end   string
		params       string
		createdNanos int64
	)
	if err := row.Scan(
		&r.ID, &r.Strategy, &r.Symbol, &start, &end, &params,
		&r.InitialCapital, &r.FinalCapital, &r.TotalReturn, &r.SharpeRatio, &r.MaxDrawdown,
		&r.TotalTrades, &createdNanos,
	); err != nil {
		return nil, err
	}

	var err error
	if r.Start, err = time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("run %s start_date: %w", r.ID, err)
	}
	if r.End, err = time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("run %s end_date: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("run %s params: %w", r.ID, err)
	}
	r.CreatedAt = time.Unix(0, createdNanos).UTC()
	return &r, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListRunTrades returns the trades of a run in execution order. An unknown
// run fails with domain.ErrNotFound.
func (s *SQLiteStore) ListRunTrades(ctx context.Context, id string) ([]domain.Trade, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		entry_date, entry_price, direction, size, exit_date, exit_price, pnl_percent, pnl_dollars
		FROM run_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []domain.Trade{}
	for rows.Next() {
		var (
			t           domain.Trade
			entry, exit string
			direction   string
		)
		if err := rows.Scan(&entry, &t.EntryPrice, &direction, &t.Size, &exit, &t.ExitPrice, &t.PnLPercent, &t.PnLDollars); err != nil {
			return nil, err
		}
		if t.EntryDate, err = time.Parse(dateLayout, entry); err != nil {
			return nil, err
		}
		if t.ExitDate, err = time.Parse(dateLayout, exit); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
