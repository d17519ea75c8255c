// Package storage is the database sink for reporting tables and run history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"custetl/internal/config"
	"custetl/internal/tables"
)

// Storage errors.
var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrNoColumns     = errors.New("table has no columns")
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the pipeline_runs history.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	Status     string
	LastStage  string
	LastError  string
	Customers  int
	Segments   int
}

// Store wraps database access for the reporting sink.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to driver ("postgres" or "sqlite"), checks the connection and
// creates the run history table.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var d dialect

	switch driver {
	case config.DriverPostgres:
		d = postgresDialect
	case config.DriverSQLite:
		d = sqliteDialect
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	return nil
}

// ReplaceTable drops t.Name, recreates it from t.Columns and inserts every
// row, all in one transaction. Empty cells are stored as NULL.
func (s *Store) ReplaceTable(ctx context.Context, t *tables.Table) (err error) {
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: %s", ErrNoColumns, t.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(t.Name)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", t.Name, err)
	}

	if _, err = tx.ExecContext(ctx, s.dialect.createTable(t)); err != nil {
		return fmt.Errorf("failed to create %s: %w", t.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(t))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", t.Name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))

	for n, row := range t.Rows {
		if len(row) != len(t.Columns) {
			err = fmt.Errorf("%w: %s row %d", tables.ErrRowWidth, t.Name, n)
			return err
		}

		for i, cell := range row {
			if t.Columns[i].IsNull(cell) {
				args[i] = nil
			} else {
				args[i] = cell
			}
		}

		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s row %d: %w", t.Name, n, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", t.Name, err)
	}

	return nil
}

// RowCount returns the number of rows in table.
func (s *Store) RowCount(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	return n, nil
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	p := s.dialect.placeholder
	query := fmt.Sprintf(
		`INSERT INTO pipeline_runs (run_id, started_at, finished_at, status, last_stage, customers, segments, last_error)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8),
	)

	var lastErr sql.NullString
	if run.LastError != "" {
		lastErr = sql.NullString{String: run.LastError, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, run.LastStage,
		run.Customers, run.Segments, lastErr,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := fmt.Sprintf(
		`SELECT run_id, started_at, finished_at, status, last_stage, customers, segments, last_error
		FROM pipeline_runs ORDER BY started_at DESC LIMIT %s`, s.dialect.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r       Run
			lastErr sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.LastStage, &r.Customers, &r.Segments, &lastErr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.LastError = lastErr.String
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
