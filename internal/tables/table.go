// Package tables holds the tabular artifacts exchanged between pipeline stages
// and their CSV encoding.
package tables

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table errors.
var (
	ErrEmptyCSV      = errors.New("csv has no header row")
	ErrMissingColumn = errors.New("required column missing")
	ErrRowWidth      = errors.New("row width does not match columns")
	ErrBadCell       = errors.New("malformed cell")
)

// Kind is the storage type of a column.
type Kind int

// Column kinds.
const (
	KindText Kind = iota
	KindInteger
	KindDecimal
	KindReal
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindReal:
		return "real"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// Column describes one table column.
type Column struct {
	Name string
	Kind Kind
}

// Table is a named, typed set of rows. Cells are kept in their text encoding;
// an empty cell is a missing value.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]string
}

// nullMarkers are the missing-value spellings of dataframe tools. They are
// missing only in typed columns; in a text column "NA" is an ordinary value.
var nullMarkers = map[string]struct{}{"": {}, "NaN": {}, "NA": {}, "<nil>": {}}

// IsNull reports whether a text cell is missing. Only a blank cell is.
func IsNull(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// IsNullValue reports whether a numeric or date cell is missing.
func IsNullValue(cell string) bool {
	_, ok := nullMarkers[strings.TrimSpace(cell)]
	return ok
}

// IsNull reports whether cell is missing under the column's kind.
func (c Column) IsNull(cell string) bool {
	if c.Kind == KindText {
		return IsNull(cell)
	}

	return IsNullValue(cell)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}

	return -1
}

// Require returns the positions of the named columns, failing on the first
// one that is absent.
func (t *Table) Require(names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))

	for _, name := range names {
		i := t.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingColumn, t.Name, name)
		}

		idx[name] = i
	}

	return idx, nil
}

// Append adds a row after checking its width.
func (t *Table) Append(row ...string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("%w: %s has %d columns, row has %d", ErrRowWidth, t.Name, len(t.Columns), len(row))
	}

	t.Rows = append(t.Rows, row)

	return nil
}

// ReadCSV decodes a CSV with a header row. Columns of a known artifact get
// their schema kinds and typed cells holding a null marker are cleared; all
// other cells keep their text.
func ReadCSV(r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	header, hasRows, err := peekCSV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if header == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCSV, name)
	}

	t := &Table{Name: name}
	for _, col := range header {
		t.Columns = append(t.Columns, Column{Name: strings.TrimSpace(col), Kind: KindText})
	}

	t.ApplySchema()

	// gota cannot build a frame from a header alone.
	if !hasRows {
		return t, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, df.Err)
	}

	for _, rec := range df.Records()[1:] {
		row := make([]string, len(rec))
		for i, cell := range rec {
			if i < len(t.Columns) && t.Columns[i].IsNull(cell) {
				continue
			}

			row[i] = cell
		}

		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// peekCSV returns the header record and whether any data record follows it.
// A nil header means the input is empty.
func peekCSV(data []byte) ([]string, bool, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	if _, err := cr.Read(); errors.Is(err, io.EOF) {
		return header, false, nil
	} else if err != nil {
		return nil, false, err
	}

	return header, true, nil
}

// WriteCSV encodes the table with a header row. Missing values are written as
// empty cells.
func (t *Table) WriteCSV(w io.Writer) error {
	header := t.ColumnNames()

	if len(t.Rows) == 0 {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write %s header: %w", t.Name, err)
		}

		cw.Flush()

		return cw.Error()
	}

	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, header)
	records = append(records, t.Rows...)

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to encode %s: %w", t.Name, df.Err)
	}

	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", t.Name, err)
	}

	return nil
}

// ReadFile reads a CSV artifact from disk.
func ReadFile(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f, name)
}

// WriteFile writes the table to path, creating parent directories.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
