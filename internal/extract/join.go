package extract

import (
	"database/sql"
	"strings"

	"custetl/internal/models"
)

// Join left-joins customers with purchases on mobile. Customer order is kept;
// each customer's purchases follow in provider order. A customer without
// purchases yields one row with the purchase fields absent. Purchases for
// unknown mobiles are dropped.
func Join(customers []models.Customer, purchases []models.Purchase) []models.Transaction {
	byMobile := make(map[string][]models.Purchase, len(customers))
	for _, p := range purchases {
		m := strings.TrimPrefix(strings.TrimSpace(p.Mobile), "+")
		byMobile[m] = append(byMobile[m], p)
	}

	out := make([]models.Transaction, 0, len(customers)+len(purchases))

	for _, c := range customers {
		base := models.Transaction{
			Name:   c.Name,
			Mobile: c.Mobile,
			Gender: c.Gender,
			Age:    c.Age,
			Income: c.Income,
		}

		history := byMobile[c.Mobile]
		if len(history) == 0 {
			out = append(out, base)
			continue
		}

		for _, p := range history {
			row := base
			row.Amount = p.Amount

			if p.Date != nil {
				row.DateText = strings.TrimSpace(*p.Date)
			}

			if p.Store != nil && strings.TrimSpace(*p.Store) != "" {
				row.Store = sql.NullString{String: strings.TrimSpace(*p.Store), Valid: true}
			}

			out = append(out, row)
		}
	}

	return out
}
