package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerFeatures is the per-customer feature vector used for segmentation.
type CustomerFeatures struct {
	FirstPurchase          time.Time
	LastPurchase           time.Time
	Mobile                 string
	Gender                 string
	CLV                    decimal.Decimal
	AvgPurchaseAmount      decimal.Decimal
	MaxPurchaseAmount      decimal.Decimal
	MinPurchaseAmount      decimal.Decimal
	Income                 decimal.Decimal
	PurchaseFrequency      float64
	PurchaseCount          int
	Age                    int
	DaysSinceFirstPurchase int
	DaysSinceLastPurchase  int
	GenderCode             int
	Segment                int
}

// SegmentMetric summarizes one segment label.
type SegmentMetric struct {
	MeanCLV      decimal.Decimal
	MeanIncome   decimal.Decimal
	MeanAge      float64
	Segment      int
	NumCustomers int
}
