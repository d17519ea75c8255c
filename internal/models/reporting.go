package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// BehaviorMetric is the standalone per-customer reporting view. It is computed
// independently of CustomerFeatures and keeps customers without dated purchases.
type BehaviorMetric struct {
	FirstPurchase          sql.NullTime
	LastPurchase           sql.NullTime
	DaysSinceFirstPurchase sql.NullInt64
	DaysSinceLastPurchase  sql.NullInt64
	Mobile                 string
	TotalSpent             decimal.Decimal
	AvgTransactionValue    decimal.Decimal
	MaxPurchaseAmount      decimal.Decimal
	MinPurchaseAmount      decimal.Decimal
	PurchaseCount          int
}

// StoreSummary is spend and visit count per (customer, store).
type StoreSummary struct {
	Mobile     string
	Store      string
	TotalSpent decimal.Decimal
	VisitCount int
}

// PurchaseTrend is spend and purchase count per (customer, calendar month).
type PurchaseTrend struct {
	Mobile       string
	Month        string
	TotalSpent   decimal.Decimal
	NumPurchases int
}

// TransformResult bundles the five reporting artifacts of one transform run.
type TransformResult struct {
	Segments       []CustomerFeatures
	SegmentMetrics []SegmentMetric
	Behavior       []BehaviorMetric
	StoreSummary   []StoreSummary
	PurchaseTrends []PurchaseTrend
	// GenderCodes lists category values by code: GenderCodes[i] was encoded as i.
	GenderCodes []string
}
