package tables

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadCSV_NullMarkers(t *testing.T) {
	input := "name,age,income,mobile,gender\n" +
		"Asha,34,120000.50,9876543210,Female\n" +
		"Ravi,NaN,,9876543211,Male\n" +
		"Meera,NA,99000,9876543212,Other\n" +
		"NA,41,<nil>,9876543213,NA\n"

	table, err := ReadCSV(strings.NewReader(input), Customers)
	if err != nil {
		t.Fatalf("ReadCSV() error: %v", err)
	}

	if !reflect.DeepEqual(table.ColumnNames(), []string{"name", "age", "income", "mobile", "gender"}) {
		t.Errorf("columns = %v", table.ColumnNames())
	}

	if len(table.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(table.Rows))
	}

	if table.Rows[1][1] != "" || table.Rows[1][2] != "" || table.Rows[2][1] != "" || table.Rows[3][2] != "" {
		t.Errorf("null markers in typed columns not cleared: %v", table.Rows)
	}

	if table.Rows[3][0] != "NA" || table.Rows[3][4] != "NA" {
		t.Errorf("text cells must keep literal NA: %v", table.Rows[3])
	}

	if table.Columns[1].Kind != KindInteger || table.Columns[0].Kind != KindText {
		t.Errorf("schema kinds not applied: %v", table.Columns)
	}

	if table.Rows[0][2] != "120000.50" {
		t.Errorf("income cell = %q, want text preserved", table.Rows[0][2])
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	original := &Table{
		Name:    "sample",
		Columns: []Column{{Name: "mobile"}, {Name: "store"}, {Name: "amount", Kind: KindDecimal}},
		Rows: [][]string{
			{"9876543210", "Store A", "10.00"},
			{"9876543211", "", "0.50"},
		},
	}

	var buf bytes.Buffer
	if err := original.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	want := "mobile,store,amount\n9876543210,Store A,10.00\n9876543211,,0.50\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() = %q, want %q", buf.String(), want)
	}

	back, err := ReadCSV(&buf, "sample")
	if err != nil {
		t.Fatalf("ReadCSV() error: %v", err)
	}

	if !reflect.DeepEqual(back.Rows, original.Rows) {
		t.Errorf("rows after round trip = %v", back.Rows)
	}
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	table := &Table{Name: "empty", Columns: []Column{{Name: "a"}, {Name: "b"}}}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	if buf.String() != "a,b\n" {
		t.Errorf("WriteCSV() = %q", buf.String())
	}
}

func TestReadCSV_HeaderOnlyRoundTrip(t *testing.T) {
	for _, written := range []*Table{PurchaseTrendsTable(nil), StoreSummaryTable(nil)} {
		var buf bytes.Buffer
		if err := written.WriteCSV(&buf); err != nil {
			t.Fatalf("WriteCSV(%s) error: %v", written.Name, err)
		}

		back, err := ReadCSV(&buf, written.Name)
		if err != nil {
			t.Fatalf("ReadCSV(%s) error: %v", written.Name, err)
		}

		if len(back.Rows) != 0 {
			t.Errorf("%s: got %d rows, want 0", written.Name, len(back.Rows))
		}

		if !reflect.DeepEqual(back.Columns, written.Columns) {
			t.Errorf("%s: columns = %v, want %v", written.Name, back.Columns, written.Columns)
		}
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), "nothing"); !errors.Is(err, ErrEmptyCSV) {
		t.Errorf("ReadCSV() error = %v, want ErrEmptyCSV", err)
	}
}

func TestColumn_IsNull(t *testing.T) {
	tests := []struct {
		kind Kind
		cell string
		want bool
	}{
		{KindText, "", true},
		{KindText, "  ", true},
		{KindText, "NA", false},
		{KindText, "NaN", false},
		{KindInteger, "NA", true},
		{KindDecimal, "NaN", true},
		{KindDate, "<nil>", true},
		{KindReal, "0", false},
	}

	for _, tt := range tests {
		if got := (Column{Name: "c", Kind: tt.kind}).IsNull(tt.cell); got != tt.want {
			t.Errorf("%s column IsNull(%q) = %v, want %v", tt.kind, tt.cell, got, tt.want)
		}
	}
}

func TestTable_WriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	table := &Table{Name: "x", Columns: []Column{{Name: "v"}}, Rows: [][]string{{"1"}}}
	if err := table.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	back, err := ReadFile(path, "x")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	if len(back.Rows) != 1 || back.Rows[0][0] != "1" {
		t.Errorf("rows = %v", back.Rows)
	}
}

func TestTable_RequireAndAppend(t *testing.T) {
	table := &Table{Name: "t", Columns: []Column{{Name: "a"}, {Name: "b"}}}

	if _, err := table.Require("a", "c"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Require() error = %v, want ErrMissingColumn", err)
	}

	if err := table.Append("1"); !errors.Is(err, ErrRowWidth) {
		t.Errorf("Append() error = %v, want ErrRowWidth", err)
	}

	if err := table.Append("1", "2"); err != nil {
		t.Errorf("Append() error: %v", err)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), "nope"); err == nil {
		t.Error("ReadFile() expected error for missing file")
	}
}
