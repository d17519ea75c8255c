package transform

import (
	"database/sql"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

// MonthLayout is the calendar-month key of the purchase trend view.
const MonthLayout = "2006-01"

// AttachSegments returns a copy of features with labels[i] set on row i.
func AttachSegments(features []models.CustomerFeatures, labels []int) ([]models.CustomerFeatures, error) {
	if len(features) != len(labels) {
		return nil, ErrMatrixShape
	}

	out := make([]models.CustomerFeatures, len(features))
	for i, f := range features {
		f.Segment = labels[i]
		out[i] = f
	}

	return out, nil
}

// SegmentMetrics returns mean clv, age and income and the customer count per
// observed segment, ordered by segment.
func SegmentMetrics(features []models.CustomerFeatures) []models.SegmentMetric {
	type acc struct {
		clv, income decimal.Decimal
		age         float64
		count       int
	}

	groups := make(map[int]*acc)

	var order []int

	for _, f := range features {
		a, ok := groups[f.Segment]
		if !ok {
			a = &acc{}
			groups[f.Segment] = a
			order = append(order, f.Segment)
		}

		a.clv = a.clv.Add(f.CLV)
		a.income = a.income.Add(f.Income)
		a.age += float64(f.Age)
		a.count++
	}

	sort.Ints(order)

	metrics := make([]models.SegmentMetric, 0, len(order))

	for _, seg := range order {
		a := groups[seg]
		n := decimal.NewFromInt(int64(a.count))

		metrics = append(metrics, models.SegmentMetric{
			Segment:      seg,
			MeanCLV:      a.clv.Div(n),
			MeanAge:      a.age / float64(a.count),
			MeanIncome:   a.income.Div(n),
			NumCustomers: a.count,
		})
	}

	return metrics
}

// BehaviorMetrics computes the standalone per-customer reporting view from
// cleaned transactions. Unlike the feature builder it keeps every customer;
// date columns are null when none of the customer's rows is dated.
func BehaviorMetrics(rows []models.Transaction, asOf time.Time) []models.BehaviorMetric {
	type acc struct {
		first, last   time.Time
		sum, max, min decimal.Decimal
		count         int
		dated         bool
	}

	groups := make(map[string]*acc)

	var order []string

	for _, r := range rows {
		a, ok := groups[r.Mobile]
		if !ok {
			a = &acc{}
			groups[r.Mobile] = a
			order = append(order, r.Mobile)
		}

		if r.Amount.Valid {
			amt := r.Amount.Decimal
			if a.count == 0 {
				a.max, a.min = amt, amt
			} else {
				a.max = decimal.Max(a.max, amt)
				a.min = decimal.Min(a.min, amt)
			}

			a.sum = a.sum.Add(amt)
			a.count++
		}

		if r.Date.Valid {
			if !a.dated || r.Date.Time.Before(a.first) {
				a.first = r.Date.Time
			}

			if !a.dated || r.Date.Time.After(a.last) {
				a.last = r.Date.Time
			}

			a.dated = true
		}
	}

	sort.Strings(order)

	out := make([]models.BehaviorMetric, 0, len(order))

	for _, mobile := range order {
		a := groups[mobile]
		m := models.BehaviorMetric{
			Mobile:            mobile,
			TotalSpent:        a.sum,
			MaxPurchaseAmount: a.max,
			MinPurchaseAmount: a.min,
			PurchaseCount:     a.count,
		}

		if a.count > 0 {
			m.AvgTransactionValue = a.sum.Div(decimal.NewFromInt(int64(a.count)))
		}

		if a.dated {
			m.FirstPurchase = sql.NullTime{Time: a.first, Valid: true}
			m.LastPurchase = sql.NullTime{Time: a.last, Valid: true}
			m.DaysSinceFirstPurchase = sql.NullInt64{Int64: int64(daysBetween(a.first, asOf)), Valid: true}
			m.DaysSinceLastPurchase = sql.NullInt64{Int64: int64(daysBetween(a.last, asOf)), Valid: true}
		}

		out = append(out, m)
	}

	return out
}

type pairKey struct {
	mobile, second string
}

type spendAcc struct {
	total decimal.Decimal
	count int
}

// groupSpend sums amounts per (mobile, key(row)). Rows for which key reports
// false are skipped. Keys come back sorted by mobile, then second component.
func groupSpend(rows []models.Transaction, key func(models.Transaction) (string, bool)) (map[pairKey]*spendAcc, []pairKey) {
	groups := make(map[pairKey]*spendAcc)

	var order []pairKey

	for _, r := range rows {
		second, ok := key(r)
		if !ok || !r.Amount.Valid {
			continue
		}

		k := pairKey{mobile: r.Mobile, second: second}

		a, seen := groups[k]
		if !seen {
			a = &spendAcc{}
			groups[k] = a
			order = append(order, k)
		}

		a.total = a.total.Add(r.Amount.Decimal)
		a.count++
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].mobile != order[j].mobile {
			return order[i].mobile < order[j].mobile
		}

		return order[i].second < order[j].second
	})

	return groups, order
}

// StoreSummary returns total spend and visit count per (customer, store).
// Rows without a store are not attributed to any store.
func StoreSummary(rows []models.Transaction) []models.StoreSummary {
	groups, order := groupSpend(rows, func(r models.Transaction) (string, bool) {
		return r.Store.String, r.Store.Valid
	})

	out := make([]models.StoreSummary, 0, len(order))
	for _, k := range order {
		out = append(out, models.StoreSummary{
			Mobile:     k.mobile,
			Store:      k.second,
			TotalSpent: groups[k].total,
			VisitCount: groups[k].count,
		})
	}

	return out
}

// PurchaseTrends returns spend and purchase count per (customer, month).
// Undated rows are excluded from this view only.
func PurchaseTrends(rows []models.Transaction) []models.PurchaseTrend {
	groups, order := groupSpend(rows, func(r models.Transaction) (string, bool) {
		if !r.Date.Valid {
			return "", false
		}

		return r.Date.Time.Format(MonthLayout), true
	})

	out := make([]models.PurchaseTrend, 0, len(order))
	for _, k := range order {
		out = append(out, models.PurchaseTrend{
			Mobile:       k.mobile,
			Month:        k.second,
			TotalSpent:   groups[k].total,
			NumPurchases: groups[k].count,
		})
	}

	return out
}
