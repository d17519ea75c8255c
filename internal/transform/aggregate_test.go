package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

func TestStoreSummary_SumsPerStore(t *testing.T) {
	in := cleaned(t,
		txn{mobile: "1", gender: "Male", date: "2024-01-01", store: "Store A", amount: "10.50", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-01-02", store: "Store A", amount: "4.50", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-01-03", store: "Store B", amount: "7", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-01-04", amount: "99", income: "1", age: 1},
		txn{mobile: "2", gender: "Female", date: "2024-01-01", store: "Store A", income: "1", age: 1},
	)

	summary := StoreSummary(in)

	want := []models.StoreSummary{
		{Mobile: "1", Store: "Store A", TotalSpent: mustDecimal("15"), VisitCount: 2},
		{Mobile: "1", Store: "Store B", TotalSpent: mustDecimal("7"), VisitCount: 1},
		{Mobile: "2", Store: "Store A", TotalSpent: decimal.Zero, VisitCount: 1},
	}

	if len(summary) != len(want) {
		t.Fatalf("StoreSummary() = %+v, want %d rows", summary, len(want))
	}

	for i, w := range want {
		got := summary[i]
		if got.Mobile != w.Mobile || got.Store != w.Store || got.VisitCount != w.VisitCount || !got.TotalSpent.Equal(w.TotalSpent) {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestStoreSummary_MatchesTransactionTotals(t *testing.T) {
	in := cleaned(t,
		txn{mobile: "1", gender: "Male", date: "2024-01-01", store: "X", amount: "1.25", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-02-01", store: "X", amount: "2.75", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", store: "X", amount: "3", income: "1", age: 1},
		txn{mobile: "2", gender: "Male", date: "2024-01-01", store: "Y", amount: "8", income: "1", age: 1},
	)

	expected := make(map[[2]string]decimal.Decimal)

	for _, r := range in {
		if r.Store.Valid {
			k := [2]string{r.Mobile, r.Store.String}
			expected[k] = expected[k].Add(r.Amount.Decimal)
		}
	}

	for _, s := range StoreSummary(in) {
		if want := expected[[2]string{s.Mobile, s.Store}]; !s.TotalSpent.Equal(want) {
			t.Errorf("(%s, %s) total = %s, want %s", s.Mobile, s.Store, s.TotalSpent, want)
		}
	}
}

func TestPurchaseTrends_ExcludesUndated(t *testing.T) {
	in := cleaned(t,
		txn{mobile: "1", gender: "Male", date: "2024-01-01", amount: "10", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "31-01-2024", amount: "5", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-02-10", amount: "1", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024/03/01", amount: "1000", income: "1", age: 1},
		txn{mobile: "2", gender: "Male", amount: "7", income: "1", age: 1},
	)

	trends := PurchaseTrends(in)
	if len(trends) != 2 {
		t.Fatalf("PurchaseTrends() = %+v, want 2 rows", trends)
	}

	if trends[0].Month != "2024-01" || trends[0].NumPurchases != 2 || !trends[0].TotalSpent.Equal(mustDecimal("15")) {
		t.Errorf("January = %+v", trends[0])
	}

	if trends[1].Month != "2024-02" || trends[1].NumPurchases != 1 {
		t.Errorf("February = %+v", trends[1])
	}

	for _, tr := range trends {
		if tr.Mobile == "2" {
			t.Error("undated customer appears in trends")
		}
	}
}

func TestBehaviorMetrics(t *testing.T) {
	in := cleaned(t,
		txn{mobile: "1", gender: "Male", date: "2024-06-01", amount: "20", income: "1", age: 1},
		txn{mobile: "1", gender: "Male", date: "2024-06-20", amount: "40", income: "1", age: 1},
		txn{mobile: "2", gender: "Male", amount: "9", income: "1", age: 1},
	)

	metrics := BehaviorMetrics(in, testAsOf)
	if len(metrics) != 2 {
		t.Fatalf("BehaviorMetrics() returned %d rows, want 2", len(metrics))
	}

	a := metrics[0]
	if !a.TotalSpent.Equal(mustDecimal("60")) || !a.AvgTransactionValue.Equal(mustDecimal("30")) || a.PurchaseCount != 2 {
		t.Errorf("customer 1 = %+v", a)
	}

	if !a.DaysSinceLastPurchase.Valid || a.DaysSinceLastPurchase.Int64 != 10 || a.DaysSinceFirstPurchase.Int64 != 29 {
		t.Errorf("customer 1 recency = %+v / %+v", a.DaysSinceLastPurchase, a.DaysSinceFirstPurchase)
	}

	b := metrics[1]
	if b.FirstPurchase.Valid || b.LastPurchase.Valid || b.DaysSinceLastPurchase.Valid {
		t.Errorf("undated customer should have null dates: %+v", b)
	}

	if !b.TotalSpent.Equal(mustDecimal("9")) {
		t.Errorf("undated customer total = %s, want 9", b.TotalSpent)
	}
}

func TestSegmentMetrics(t *testing.T) {
	features := []models.CustomerFeatures{
		{Segment: 1, CLV: mustDecimal("100"), Age: 30, Income: mustDecimal("1000")},
		{Segment: 0, CLV: mustDecimal("10"), Age: 20, Income: mustDecimal("500")},
		{Segment: 1, CLV: mustDecimal("300"), Age: 41, Income: mustDecimal("3000")},
	}

	metrics := SegmentMetrics(features)
	if len(metrics) != 2 {
		t.Fatalf("SegmentMetrics() returned %d rows, want 2", len(metrics))
	}

	if metrics[0].Segment != 0 || metrics[1].Segment != 1 {
		t.Errorf("segments not ascending: %+v", metrics)
	}

	m := metrics[1]
	if m.NumCustomers != 2 || !m.MeanCLV.Equal(mustDecimal("200")) || !m.MeanIncome.Equal(mustDecimal("2000")) {
		t.Errorf("segment 1 = %+v", m)
	}

	if math.Abs(m.MeanAge-35.5) > 1e-9 {
		t.Errorf("segment 1 mean age = %v, want 35.5", m.MeanAge)
	}
}

func TestAttachSegments(t *testing.T) {
	features := []models.CustomerFeatures{{Mobile: "1"}, {Mobile: "2"}}

	out, err := AttachSegments(features, []int{1, 0})
	if err != nil {
		t.Fatalf("AttachSegments() error: %v", err)
	}

	if out[0].Segment != 1 || out[1].Segment != 0 {
		t.Errorf("segments = %d,%d", out[0].Segment, out[1].Segment)
	}

	if features[0].Segment != 0 {
		t.Error("AttachSegments modified its input")
	}

	if _, err := AttachSegments(features, []int{0}); !errors.Is(err, ErrMatrixShape) {
		t.Errorf("length mismatch error = %v, want ErrMatrixShape", err)
	}
}
