package transform

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

// daysPerPeriod is the window length used for purchase frequency.
const daysPerPeriod = 30.0

// FeatureBuilder aggregates cleaned transactions into one feature vector per
// customer.
type FeatureBuilder struct {
	asOf time.Time
}

// NewFeatureBuilder creates a builder measuring recency against asOf.
func NewFeatureBuilder(asOf time.Time) *FeatureBuilder {
	return &FeatureBuilder{asOf: asOf}
}

type customerAccumulator struct {
	first, last   time.Time
	sum, max, min decimal.Decimal
	income        decimal.NullDecimal
	gender        string
	age           int64
	count         int
	hasAge        bool
	dated         bool
}

func (a *customerAccumulator) add(t models.Transaction) {
	if !a.hasAge && t.Age.Valid {
		a.age, a.hasAge = t.Age.Int64, true
	}

	if !a.income.Valid && t.Income.Valid {
		a.income = t.Income
	}

	if a.gender == "" {
		a.gender = t.Gender
	}

	if t.Amount.Valid {
		amt := t.Amount.Decimal
		if a.count == 0 {
			a.max, a.min = amt, amt
		} else {
			a.max = decimal.Max(a.max, amt)
			a.min = decimal.Min(a.min, amt)
		}

		a.sum = a.sum.Add(amt)
		a.count++
	}

	if t.Date.Valid {
		d := t.Date.Time
		if !a.dated || d.Before(a.first) {
			a.first = d
		}

		if !a.dated || d.After(a.last) {
			a.last = d
		}

		a.dated = true
	}
}

// Build returns one row per customer, ordered by mobile. Customers whose
// features cannot be fully derived (no dated purchase, or no age, income or
// gender to carry through) are dropped.
func (b *FeatureBuilder) Build(rows []models.Transaction) []models.CustomerFeatures {
	groups, order := groupByMobile(rows)

	features := make([]models.CustomerFeatures, 0, len(order))

	for _, mobile := range order {
		acc := groups[mobile]
		if !acc.dated || !acc.hasAge || !acc.income.Valid || acc.gender == "" || acc.count == 0 {
			continue
		}

		features = append(features, models.CustomerFeatures{
			Mobile:                 mobile,
			CLV:                    acc.sum,
			AvgPurchaseAmount:      acc.sum.Div(decimal.NewFromInt(int64(acc.count))),
			MaxPurchaseAmount:      acc.max,
			MinPurchaseAmount:      acc.min,
			PurchaseCount:          acc.count,
			FirstPurchase:          acc.first,
			LastPurchase:           acc.last,
			Age:                    int(acc.age),
			Income:                 acc.income.Decimal,
			Gender:                 acc.gender,
			DaysSinceLastPurchase:  daysBetween(acc.last, b.asOf),
			DaysSinceFirstPurchase: daysBetween(acc.first, b.asOf),
			PurchaseFrequency:      purchaseFrequency(acc.count, acc.first, acc.last),
		})
	}

	return features
}

func groupByMobile(rows []models.Transaction) (map[string]*customerAccumulator, []string) {
	groups := make(map[string]*customerAccumulator)

	var order []string

	for _, row := range rows {
		acc, ok := groups[row.Mobile]
		if !ok {
			acc = &customerAccumulator{}
			groups[row.Mobile] = acc
			order = append(order, row.Mobile)
		}

		acc.add(row)
	}

	sort.Strings(order)

	return groups, order
}

// purchaseFrequency is purchases per 30-day period spanned. A zero span counts
// as one period.
func purchaseFrequency(count int, first, last time.Time) float64 {
	periods := float64(daysBetween(first, last)) / daysPerPeriod
	if periods == 0 {
		periods = 1
	}

	return float64(count) / periods
}

// daysBetween returns the whole days elapsed from 'from' to 'to'.
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
