// Package models defines the records and tables flowing through the pipeline.
package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Customer is one row of the customer profile source.
type Customer struct {
	Name   string
	Mobile string
	Gender string
	Age    sql.NullInt64
	Income decimal.NullDecimal
}

// Purchase is one record returned by the purchase-history provider.
// Every field except Mobile may be null on the wire.
type Purchase struct {
	Mobile string              `json:"mobile"`
	Date   *string             `json:"date"`
	Store  *string             `json:"store"`
	Amount decimal.NullDecimal `json:"amount"`
}

// Transaction is a row of the joined customer/purchase table.
//
// DateText keeps the raw provider encoding so that cleaning can re-attempt
// parsing with fallback formats; Date holds the canonical calendar date once
// one of the configured formats matched.
type Transaction struct {
	Name     string
	Mobile   string
	Gender   string
	DateText string
	Date     sql.NullTime
	Store    sql.NullString
	Age      sql.NullInt64
	Income   decimal.NullDecimal
	Amount   decimal.NullDecimal
}

// HasPurchase reports whether the row carries any purchase field. Rows produced
// by the left join for customers without purchases have none.
func (t Transaction) HasPurchase() bool {
	return t.DateText != "" || t.Date.Valid || t.Store.Valid || t.Amount.Valid
}
