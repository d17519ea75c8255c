package transform

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

var testAsOf = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

// txn describes a joined row compactly; empty strings and negative ages mean
// the field is absent.
type txn struct {
	mobile, gender, date, store, amount, income string
	age                                         int
}

func (r txn) row() models.Transaction {
	t := models.Transaction{
		Name:     "Customer " + r.mobile,
		Mobile:   r.mobile,
		Gender:   r.gender,
		DateText: r.date,
	}

	if r.store != "" {
		t.Store = sql.NullString{String: r.store, Valid: true}
	}

	if r.amount != "" {
		t.Amount = decimal.NewNullDecimal(decimal.RequireFromString(r.amount))
	}

	if r.income != "" {
		t.Income = decimal.NewNullDecimal(decimal.RequireFromString(r.income))
	}

	if r.age >= 0 {
		t.Age = sql.NullInt64{Int64: int64(r.age), Valid: true}
	}

	return t
}

func rows(rs ...txn) []models.Transaction {
	out := make([]models.Transaction, len(rs))
	for i, r := range rs {
		out[i] = r.row()
	}

	return out
}

func date(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}

	return d
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
