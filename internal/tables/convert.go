package tables

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

// Artifact names. Output tables are replaced wholesale in the storage sink
// under these names.
const (
	Customers        = "customers"
	Purchases        = "purchases"
	Joined           = "joined"
	CustomerSegments = "customer_segments"
	SegmentMetrics   = "segment_metrics"
	CustomerBehavior = "customer_behavior_metrics"
	StoreSummary     = "customer_store_summary"
	PurchaseTrends   = "customer_purchase_trends"
	GenderCodes      = "gender_codes"
)

// OutputNames lists the reporting artifacts in load order.
var OutputNames = []string{
	CustomerSegments,
	SegmentMetrics,
	CustomerBehavior,
	StoreSummary,
	PurchaseTrends,
}

// DateLayout is the encoding of calendar dates in artifacts.
const DateLayout = time.DateOnly

const moneyPlaces = 2

func textCol(name string) Column  { return Column{Name: name, Kind: KindText} }
func intCol(name string) Column   { return Column{Name: name, Kind: KindInteger} }
func moneyCol(name string) Column { return Column{Name: name, Kind: KindDecimal} }
func realCol(name string) Column  { return Column{Name: name, Kind: KindReal} }
func dateCol(name string) Column  { return Column{Name: name, Kind: KindDate} }

var (
	customerColumns = []Column{textCol("name"), intCol("age"), moneyCol("income"), textCol("mobile"), textCol("gender")}
	purchaseColumns = []Column{textCol("mobile"), textCol("date"), textCol("store"), moneyCol("amount")}
	joinedColumns   = []Column{
		textCol("name"), intCol("age"), moneyCol("income"), textCol("mobile"), textCol("gender"),
		textCol("date"), textCol("store"), moneyCol("amount"),
	}
	segmentColumns = []Column{
		textCol("mobile"), moneyCol("clv"), moneyCol("avg_purchase_amount"), moneyCol("max_purchase_amount"),
		moneyCol("min_purchase_amount"), intCol("purchase_count"), dateCol("last_purchase"), dateCol("first_purchase"),
		intCol("age"), moneyCol("income"), intCol("gender"), intCol("days_since_last_purchase"),
		realCol("purchase_frequency"), intCol("days_since_first_purchase"), intCol("segment"),
	}
	segmentMetricColumns = []Column{intCol("segment"), moneyCol("clv"), realCol("age"), moneyCol("income"), intCol("num_customers")}
	behaviorColumns      = []Column{
		textCol("mobile"), moneyCol("total_spent"), moneyCol("avg_transaction_value"), moneyCol("max_purchase_amount"),
		moneyCol("min_purchase_amount"), intCol("purchase_count"), dateCol("first_purchase"), dateCol("last_purchase"),
		intCol("days_since_first_purchase"), intCol("days_since_last_purchase"),
	}
	storeColumns  = []Column{textCol("mobile"), textCol("store"), moneyCol("total_spent"), intCol("visit_count")}
	trendColumns  = []Column{textCol("mobile"), textCol("month"), moneyCol("total_spent"), intCol("num_purchases")}
	genderColumns = []Column{intCol("code"), textCol("gender")}
)

func newTable(name string, cols []Column, capacity int) *Table {
	return &Table{Name: name, Columns: append([]Column(nil), cols...), Rows: make([][]string, 0, capacity)}
}

// FormatMoney renders an amount with two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// FormatFloat renders a real value with fixed precision.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatNullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}

	return FormatMoney(d.Decimal)
}

func formatNullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}

	return strconv.FormatInt(v.Int64, 10)
}

func formatNullTime(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}

	return v.Time.Format(DateLayout)
}

func formatNullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}

	return v.String
}

// ParseInt reads an integer cell. Whole-valued reals such as "34.0" are
// accepted; anything else is missing.
func ParseInt(cell string) sql.NullInt64 {
	cell = strings.TrimSpace(cell)
	if IsNullValue(cell) {
		return sql.NullInt64{}
	}

	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}

	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(f), Valid: true}
}

// ParseMoney reads a decimal cell; malformed values are missing.
func ParseMoney(cell string) decimal.NullDecimal {
	cell = strings.TrimSpace(cell)
	if IsNullValue(cell) {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(d)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}

func optional(cell string, missing func(string) bool) *string {
	if missing(cell) {
		return nil
	}

	return &cell
}

// CustomersTable encodes customer profiles.
func CustomersTable(customers []models.Customer) *Table {
	t := newTable(Customers, customerColumns, len(customers))
	for _, c := range customers {
		t.Rows = append(t.Rows, []string{c.Name, formatNullInt(c.Age), formatNullMoney(c.Income), c.Mobile, c.Gender})
	}

	return t
}

// CustomersFrom decodes customer profiles. Malformed numeric cells become
// missing values.
func CustomersFrom(t *Table) ([]models.Customer, error) {
	idx, err := t.Require("mobile")
	if err != nil {
		return nil, err
	}

	name, age, income, gender := t.Index("name"), t.Index("age"), t.Index("income"), t.Index("gender")

	out := make([]models.Customer, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Customer{
			Name:   cell(row, name),
			Mobile: cell(row, idx["mobile"]),
			Gender: cell(row, gender),
			Age:    ParseInt(cell(row, age)),
			Income: ParseMoney(cell(row, income)),
		})
	}

	return out, nil
}

// PurchasesTable encodes provider records, keeping raw date text.
func PurchasesTable(purchases []models.Purchase) *Table {
	t := newTable(Purchases, purchaseColumns, len(purchases))
	for _, p := range purchases {
		t.Rows = append(t.Rows, []string{p.Mobile, deref(p.Date), deref(p.Store), formatNullMoney(p.Amount)})
	}

	return t
}

// PurchasesFrom decodes provider records.
func PurchasesFrom(t *Table) ([]models.Purchase, error) {
	idx, err := t.Require("mobile", "date", "store", "amount")
	if err != nil {
		return nil, err
	}

	out := make([]models.Purchase, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.Purchase{
			Mobile: cell(row, idx["mobile"]),
			Date:   optional(cell(row, idx["date"]), IsNullValue),
			Store:  optional(cell(row, idx["store"]), IsNull),
			Amount: ParseMoney(cell(row, idx["amount"])),
		})
	}

	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// JoinedTable encodes the joined table. Dates keep their raw text.
func JoinedTable(rows []models.Transaction) *Table {
	t := newTable(Joined, joinedColumns, len(rows))
	for _, r := range rows {
		date := r.DateText
		if date == "" && r.Date.Valid {
			date = r.Date.Time.Format(DateLayout)
		}

		t.Rows = append(t.Rows, []string{
			r.Name, formatNullInt(r.Age), formatNullMoney(r.Income), r.Mobile, r.Gender,
			date, formatNullString(r.Store), formatNullMoney(r.Amount),
		})
	}

	return t
}

// JoinedFrom decodes the joined table.
func JoinedFrom(t *Table) ([]models.Transaction, error) {
	idx, err := t.Require("name", "age", "income", "mobile", "gender", "date", "store", "amount")
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(t.Rows))
	for _, row := range t.Rows {
		tx := models.Transaction{
			Name:     cell(row, idx["name"]),
			Mobile:   cell(row, idx["mobile"]),
			Gender:   cell(row, idx["gender"]),
			DateText: cell(row, idx["date"]),
			Age:      ParseInt(cell(row, idx["age"])),
			Income:   ParseMoney(cell(row, idx["income"])),
			Amount:   ParseMoney(cell(row, idx["amount"])),
		}

		if store := cell(row, idx["store"]); !IsNull(store) {
			tx.Store = sql.NullString{String: store, Valid: true}
		}

		if IsNullValue(tx.DateText) {
			tx.DateText = ""
		}

		out = append(out, tx)
	}

	return out, nil
}

// SegmentsTable encodes the segmented feature table with gender as its code.
func SegmentsTable(features []models.CustomerFeatures) *Table {
	t := newTable(CustomerSegments, segmentColumns, len(features))
	for _, f := range features {
		t.Rows = append(t.Rows, []string{
			f.Mobile,
			FormatMoney(f.CLV),
			FormatMoney(f.AvgPurchaseAmount),
			FormatMoney(f.MaxPurchaseAmount),
			FormatMoney(f.MinPurchaseAmount),
			strconv.Itoa(f.PurchaseCount),
			f.LastPurchase.Format(DateLayout),
			f.FirstPurchase.Format(DateLayout),
			strconv.Itoa(f.Age),
			FormatMoney(f.Income),
			strconv.Itoa(f.GenderCode),
			strconv.Itoa(f.DaysSinceLastPurchase),
			FormatFloat(f.PurchaseFrequency),
			strconv.Itoa(f.DaysSinceFirstPurchase),
			strconv.Itoa(f.Segment),
		})
	}

	return t
}

// SegmentMetricsTable encodes per-segment means.
func SegmentMetricsTable(metrics []models.SegmentMetric) *Table {
	t := newTable(SegmentMetrics, segmentMetricColumns, len(metrics))
	for _, m := range metrics {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(m.Segment),
			FormatMoney(m.MeanCLV),
			FormatFloat(m.MeanAge),
			FormatMoney(m.MeanIncome),
			strconv.Itoa(m.NumCustomers),
		})
	}

	return t
}

// BehaviorTable encodes the per-customer behavior view.
func BehaviorTable(metrics []models.BehaviorMetric) *Table {
	t := newTable(CustomerBehavior, behaviorColumns, len(metrics))
	for _, m := range metrics {
		t.Rows = append(t.Rows, []string{
			m.Mobile,
			FormatMoney(m.TotalSpent),
			FormatMoney(m.AvgTransactionValue),
			FormatMoney(m.MaxPurchaseAmount),
			FormatMoney(m.MinPurchaseAmount),
			strconv.Itoa(m.PurchaseCount),
			formatNullTime(m.FirstPurchase),
			formatNullTime(m.LastPurchase),
			formatNullInt(m.DaysSinceFirstPurchase),
			formatNullInt(m.DaysSinceLastPurchase),
		})
	}

	return t
}

// StoreSummaryTable encodes spend per (customer, store).
func StoreSummaryTable(summary []models.StoreSummary) *Table {
	t := newTable(StoreSummary, storeColumns, len(summary))
	for _, s := range summary {
		t.Rows = append(t.Rows, []string{s.Mobile, s.Store, FormatMoney(s.TotalSpent), strconv.Itoa(s.VisitCount)})
	}

	return t
}

// PurchaseTrendsTable encodes spend per (customer, month).
func PurchaseTrendsTable(trends []models.PurchaseTrend) *Table {
	t := newTable(PurchaseTrends, trendColumns, len(trends))
	for _, tr := range trends {
		t.Rows = append(t.Rows, []string{tr.Mobile, tr.Month, FormatMoney(tr.TotalSpent), strconv.Itoa(tr.NumPurchases)})
	}

	return t
}

// GenderCodesTable encodes the fitted gender mapping; row i holds code i.
func GenderCodesTable(classes []string) *Table {
	t := newTable(GenderCodes, genderColumns, len(classes))
	for code, gender := range classes {
		t.Rows = append(t.Rows, []string{strconv.Itoa(code), gender})
	}

	return t
}

// GenderCodesFrom decodes the gender mapping ordered by code.
func GenderCodesFrom(t *Table) ([]string, error) {
	idx, err := t.Require("code", "gender")
	if err != nil {
		return nil, err
	}

	classes := make([]string, len(t.Rows))

	for _, row := range t.Rows {
		code := ParseInt(cell(row, idx["code"]))
		if !code.Valid || code.Int64 < 0 || code.Int64 >= int64(len(classes)) {
			return nil, fmt.Errorf("%w: %s code %q", ErrBadCell, t.Name, cell(row, idx["code"]))
		}

		classes[code.Int64] = cell(row, idx["gender"])
	}

	return classes, nil
}

// OutputTables returns the five reporting artifacts of a transform run in
// OutputNames order.
func OutputTables(result *models.TransformResult) []*Table {
	return []*Table{
		SegmentsTable(result.Segments),
		SegmentMetricsTable(result.SegmentMetrics),
		BehaviorTable(result.Behavior),
		StoreSummaryTable(result.StoreSummary),
		PurchaseTrendsTable(result.PurchaseTrends),
	}
}

// Schema returns the typed column set of a known artifact. Tables read back
// through ReadCSV get these kinds; unknown columns stay text.
func Schema(name string) ([]Column, bool) {
	switch name {
	case Customers:
		return customerColumns, true
	case Purchases:
		return purchaseColumns, true
	case Joined:
		return joinedColumns, true
	case CustomerSegments:
		return segmentColumns, true
	case SegmentMetrics:
		return segmentMetricColumns, true
	case CustomerBehavior:
		return behaviorColumns, true
	case StoreSummary:
		return storeColumns, true
	case PurchaseTrends:
		return trendColumns, true
	case GenderCodes:
		return genderColumns, true
	default:
		return nil, false
	}
}

// ApplySchema sets column kinds from the known schema of t.Name. Columns are
// matched by name; unknown columns stay text.
func (t *Table) ApplySchema() {
	cols, ok := Schema(t.Name)
	if !ok {
		return
	}

	kinds := make(map[string]Kind, len(cols))
	for _, c := range cols {
		kinds[c.Name] = c.Kind
	}

	for i, c := range t.Columns {
		if k, ok := kinds[c.Name]; ok {
			t.Columns[i].Kind = k
		}
	}
}
