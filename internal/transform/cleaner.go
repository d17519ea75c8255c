package transform

import (
	"database/sql"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

// Cleaner normalizes a joined transaction table: it removes exact duplicates,
// fills missing numeric fields and parses dates against an ordered list of
// layouts.
type Cleaner struct {
	dateFormats []string
}

// NewCleaner creates a cleaner that tries dateFormats in order.
func NewCleaner(dateFormats []string) *Cleaner {
	return &Cleaner{dateFormats: append([]string(nil), dateFormats...)}
}

// Clean returns a new table; rows is not modified.
//
// Missing age and income are filled with the median of the observed values
// after the first deduplication. A missing amount becomes zero. A second
// deduplication runs on the canonical row (parsed date instead of raw text), so
// the output never contains two identical rows and Clean(Clean(x)) == Clean(x).
func (c *Cleaner) Clean(rows []models.Transaction) []models.Transaction {
	out := dedupe(rows, rawKey)

	ageMedian, hasAge := medianAge(out)
	incomeMedian, hasIncome := medianIncome(out)

	for i := range out {
		row := &out[i]

		if !row.Age.Valid && hasAge {
			row.Age = sql.NullInt64{Int64: ageMedian, Valid: true}
		}

		if !row.Income.Valid && hasIncome {
			row.Income = decimal.NewNullDecimal(incomeMedian)
		}

		if !row.Amount.Valid {
			row.Amount = decimal.NewNullDecimal(decimal.Zero)
		}

		if !row.Date.Valid && row.DateText != "" {
			if d, ok := c.ParseDate(row.DateText); ok {
				row.Date = sql.NullTime{Time: d, Valid: true}
			}
		}
	}

	return dedupe(out, canonicalKey)
}

// ParseDate tries every configured layout in order and returns the first match
// as midnight UTC.
func (c *Cleaner) ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range c.dateFormats {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

func dedupe(rows []models.Transaction, key func(models.Transaction) string) []models.Transaction {
	seen := make(map[string]struct{}, len(rows))
	out := make([]models.Transaction, 0, len(rows))

	for _, row := range rows {
		k := key(row)
		if _, dup := seen[k]; dup {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, row)
	}

	return out
}

// rawKey identifies a row by every field as received.
func rawKey(t models.Transaction) string {
	date := ""
	if t.Date.Valid {
		date = t.Date.Time.Format(time.DateOnly)
	}

	return joinKey(t, "raw:"+t.DateText+"|"+date)
}

// canonicalKey identifies a row by its cleaned values.
func canonicalKey(t models.Transaction) string {
	if t.Date.Valid {
		return joinKey(t, "date:"+t.Date.Time.Format(time.DateOnly))
	}

	return joinKey(t, "raw:"+t.DateText)
}

func joinKey(t models.Transaction, date string) string {
	parts := []string{
		t.Name,
		t.Mobile,
		t.Gender,
		date,
		nullString(t.Store),
		nullInt(t.Age),
		nullDecimal(t.Income),
		nullDecimal(t.Amount),
	}

	return strings.Join(parts, "\x1f")
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return "\x00"
	}

	return v.String
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "\x00"
	}

	return strconv.FormatInt(v.Int64, 10)
}

func nullDecimal(v decimal.NullDecimal) string {
	if !v.Valid {
		return "\x00"
	}

	return v.Decimal.String()
}

// medianAge returns the median observed age rounded to the nearest year.
func medianAge(rows []models.Transaction) (int64, bool) {
	var ages []int64

	for _, r := range rows {
		if r.Age.Valid {
			ages = append(ages, r.Age.Int64)
		}
	}

	if len(ages) == 0 {
		return 0, false
	}

	sort.Slice(ages, func(i, j int) bool { return ages[i] < ages[j] })

	mid := len(ages) / 2
	if len(ages)%2 == 1 {
		return ages[mid], true
	}

	return int64(math.Round(float64(ages[mid-1]+ages[mid]) / 2)), true
}

func medianIncome(rows []models.Transaction) (decimal.Decimal, bool) {
	var incomes []decimal.Decimal

	for _, r := range rows {
		if r.Income.Valid {
			incomes = append(incomes, r.Income.Decimal)
		}
	}

	if len(incomes) == 0 {
		return decimal.Zero, false
	}

	sort.Slice(incomes, func(i, j int) bool { return incomes[i].LessThan(incomes[j]) })

	mid := len(incomes) / 2
	if len(incomes)%2 == 1 {
		return incomes[mid], true
	}

	return incomes[mid-1].Add(incomes[mid]).Div(decimal.NewFromInt(2)), true
}
