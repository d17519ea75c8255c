package storage

import (
	"strconv"
	"strings"

	"custetl/internal/tables"
)

type dialect struct {
	driverName string
	types      map[tables.Kind]string
	timestamp  string
	numbered   bool
}

var (
	postgresDialect = dialect{
		driverName: "postgres",
		types: map[tables.Kind]string{
			tables.KindText:    "TEXT",
			tables.KindInteger: "BIGINT",
			tables.KindDecimal: "NUMERIC(18,2)",
			tables.KindReal:    "DOUBLE PRECISION",
			tables.KindDate:    "DATE",
		},
		timestamp: "TIMESTAMPTZ",
		numbered:  true,
	}

	sqliteDialect = dialect{
		driverName: "sqlite",
		types: map[tables.Kind]string{
			tables.KindText:    "TEXT",
			tables.KindInteger: "INTEGER",
			tables.KindDecimal: "NUMERIC",
			tables.KindReal:    "REAL",
			tables.KindDate:    "TEXT",
		},
		timestamp: "TIMESTAMP",
	}
)

func (d dialect) placeholder(i int) string {
	if d.numbered {
		return "$" + strconv.Itoa(i)
	}

	return "?"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d dialect) createTable(t *tables.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c.Name) + " " + d.types[c.Kind]
	}

	return "CREATE TABLE " + quoteIdent(t.Name) + " (" + strings.Join(defs, ", ") + ")"
}

func (d dialect) insert(t *tables.Table) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))

	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
		marks[i] = d.placeholder(i + 1)
	}

	return "INSERT INTO " + quoteIdent(t.Name) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func (d dialect) migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id TEXT PRIMARY KEY,
			started_at ` + d.timestamp + `,
			finished_at ` + d.timestamp + `,
			status TEXT,
			last_stage TEXT,
			customers INTEGER,
			segments INTEGER,
			last_error TEXT
		)`,
	}
}
