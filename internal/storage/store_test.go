package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"custetl/internal/tables"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "reporting.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

func storeTable(rows ...[]string) *tables.Table {
	return &tables.Table{
		Name: tables.StoreSummary,
		Columns: []tables.Column{
			{Name: "mobile", Kind: tables.KindText},
			{Name: "store", Kind: tables.KindText},
			{Name: "total_spent", Kind: tables.KindDecimal},
			{Name: "visit_count", Kind: tables.KindInteger},
		},
		Rows: rows,
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "dsn"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Open() error = %v, want ErrUnknownDriver", err)
	}
}

func TestStore_ReplaceTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := storeTable(
		[]string{"1", "Store A", "10.50", "2"},
		[]string{"1", "Store B", "3.00", "1"},
		[]string{"2", "Store A", "7.25", "1"},
	)

	if err := s.ReplaceTable(ctx, first); err != nil {
		t.Fatalf("ReplaceTable() error: %v", err)
	}

	if n, err := s.RowCount(ctx, tables.StoreSummary); err != nil || n != 3 {
		t.Fatalf("RowCount() = %d, %v; want 3", n, err)
	}

	if err := s.ReplaceTable(ctx, storeTable([]string{"3", "", "1.00", "1"})); err != nil {
		t.Fatalf("second ReplaceTable() error: %v", err)
	}

	if n, _ := s.RowCount(ctx, tables.StoreSummary); n != 1 {
		t.Errorf("RowCount() after replace = %d, want 1", n)
	}

	var (
		store sql.NullString
		total float64
	)

	row := s.db.QueryRowContext(ctx, `SELECT store, total_spent FROM customer_store_summary`)
	if err := row.Scan(&store, &total); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if store.Valid {
		t.Errorf("empty cell stored as %q, want NULL", store.String)
	}

	if total != 1.0 {
		t.Errorf("total_spent = %v, want 1.0", total)
	}
}

func TestStore_ReplaceTable_RollsBackOnBadRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.ReplaceTable(ctx, storeTable([]string{"1", "Store A", "1.00", "1"})); err != nil {
		t.Fatalf("ReplaceTable() error: %v", err)
	}

	bad := storeTable([]string{"2", "Store A", "1.00", "1"}, []string{"short"})
	if err := s.ReplaceTable(ctx, bad); !errors.Is(err, tables.ErrRowWidth) {
		t.Fatalf("ReplaceTable() error = %v, want ErrRowWidth", err)
	}

	if n, _ := s.RowCount(ctx, tables.StoreSummary); n != 1 {
		t.Errorf("RowCount() after failed replace = %d, want previous 1", n)
	}
}

func TestStore_ReplaceTable_NoColumns(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceTable(context.Background(), &tables.Table{Name: "x"}); !errors.Is(err, ErrNoColumns) {
		t.Errorf("ReplaceTable() error = %v, want ErrNoColumns", err)
	}
}

func TestStore_RecordRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	start := time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC)

	runs := []Run{
		{ID: "run-1", StartedAt: start, FinishedAt: start.Add(time.Minute), Status: StatusSucceeded, LastStage: "REPORT", Customers: 10, Segments: 3},
		{ID: "run-2", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour), Status: StatusFailed, LastStage: "EXTRACT_PURCHASES", LastError: "upstream down"},
	}

	for _, r := range runs {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun() error: %v", err)
		}
	}

	got, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}

	if len(got) != 2 || got[0].ID != "run-2" {
		t.Fatalf("Runs() = %+v", got)
	}

	if got[0].LastError != "upstream down" || got[1].LastError != "" || got[1].Customers != 10 {
		t.Errorf("Runs() = %+v", got)
	}

	if !strings.EqualFold(got[1].Status, StatusSucceeded) {
		t.Errorf("status = %s", got[1].Status)
	}
}

func TestDialect_Statements(t *testing.T) {
	table := storeTable()

	if got := postgresDialect.insert(table); !strings.Contains(got, "VALUES ($1, $2, $3, $4)") {
		t.Errorf("postgres insert = %s", got)
	}

	if got := sqliteDialect.insert(table); !strings.Contains(got, "VALUES (?, ?, ?, ?)") {
		t.Errorf("sqlite insert = %s", got)
	}

	if got := postgresDialect.createTable(table); !strings.Contains(got, `"total_spent" NUMERIC(18,2)`) {
		t.Errorf("postgres create = %s", got)
	}
}
