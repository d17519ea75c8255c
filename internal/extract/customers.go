// Package extract loads customer profiles, fetches their purchase history and
// joins the two into the transaction table.
package extract

import (
	"fmt"

	"custetl/internal/models"
	"custetl/internal/tables"
	"custetl/pkg/utils"
)

// CustomerStats counts what LoadCustomers discarded.
type CustomerStats struct {
	Read          int
	InvalidMobile int
	Duplicates    int
}

// LoadCustomers reads the profile CSV at path and returns valid, unique
// customers in file order.
func LoadCustomers(path string, minDigits int) ([]models.Customer, CustomerStats, error) {
	table, err := tables.ReadFile(path, tables.Customers)
	if err != nil {
		return nil, CustomerStats{}, fmt.Errorf("failed to load customers: %w", err)
	}

	customers, err := tables.CustomersFrom(table)
	if err != nil {
		return nil, CustomerStats{}, fmt.Errorf("failed to load customers: %w", err)
	}

	kept, stats := FilterCustomers(customers, minDigits)

	return kept, stats, nil
}

// FilterCustomers drops customers whose mobile is missing or not a phone
// number of at least minDigits digits, then keeps the first customer per
// mobile. Mobiles are returned normalized (no leading '+').
func FilterCustomers(customers []models.Customer, minDigits int) ([]models.Customer, CustomerStats) {
	strs := utils.NewStringHelper()
	stats := CustomerStats{Read: len(customers)}
	seen := make(map[string]struct{}, len(customers))
	kept := make([]models.Customer, 0, len(customers))

	for _, c := range customers {
		mobile, ok := strs.NormalizeMobile(c.Mobile, minDigits)
		if !ok {
			stats.InvalidMobile++
			continue
		}

		if _, dup := seen[mobile]; dup {
			stats.Duplicates++
			continue
		}

		seen[mobile] = struct{}{}
		c.Mobile = mobile
		c.Name = strs.NormalizeWhitespace(c.Name)
		c.Gender = strs.TrimWhitespace(c.Gender)
		kept = append(kept, c)
	}

	return kept, stats
}

// Mobiles returns the customer mobiles in order.
func Mobiles(customers []models.Customer) []string {
	out := make([]string, len(customers))
	for i, c := range customers {
		out[i] = c.Mobile
	}

	return out
}
