// Package purchaseapi serves synthetic purchase history over HTTP for local
// runs and tests.
package purchaseapi

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Stores is the fixed set of store names purchases are drawn from.
var Stores = []string{"Big Bazaar", "DMart", "Reliance Fresh", "Spencer's", "More"}

// Generation probabilities.
const (
	minPurchases      = 3
	maxPurchases      = 10
	nullDateRate      = 0.10
	altDateFormatRate = 0.10
	nullAmountRate    = 0.05
	nullStoreRate     = 0.05
	duplicateRate     = 0.20
	duplicateCount    = 2
	minAmount         = 100.0
	maxAmount         = 10000.0
)

// Date layouts emitted by the generator.
const (
	DateLayout    = "2006-01-02"
	AltDateLayout = "02-01-2006"
)

// Purchase is the wire form of one purchase. Null fields are encoded as JSON
// null; Amount is a JSON number with two decimals.
type Purchase struct {
	Mobile string       `json:"mobile"`
	Date   *string      `json:"date"`
	Amount *json.Number `json:"amount"`
	Store  *string      `json:"store"`
}

// Generator produces purchase history. Identical seed and request always
// produce an identical history.
type Generator struct {
	seed  uint64
	start time.Time
	end   time.Time
}

// NewGenerator creates a generator drawing purchase dates from [start, end].
func NewGenerator(seed uint64, start, end time.Time) *Generator {
	return &Generator{seed: seed, start: start, end: end}
}

// requestSeed mixes the generator seed with the request so that different
// requests do not replay the same sequence.
func (g *Generator) requestSeed(mobiles []string) uint64 {
	h := fnv.New64a()
	for _, m := range mobiles {
		_, _ = h.Write([]byte(m))
		_, _ = h.Write([]byte{0})
	}

	return g.seed ^ h.Sum64()
}

// History returns between 3 and 10 purchases per mobile, in request order,
// with a chance of two trailing duplicates.
func (g *Generator) History(mobiles []string) []Purchase {
	faker := gofakeit.New(g.requestSeed(mobiles))
	purchases := make([]Purchase, 0, len(mobiles)*maxPurchases)

	for _, mobile := range mobiles {
		n := faker.IntRange(minPurchases, maxPurchases)
		for i := 0; i < n; i++ {
			purchases = append(purchases, g.purchase(faker, mobile))
		}
	}

	if len(purchases) > 0 && faker.Float64() < duplicateRate {
		for i := 0; i < duplicateCount; i++ {
			purchases = append(purchases, purchases[faker.IntRange(0, len(purchases)-1)])
		}
	}

	return purchases
}

func (g *Generator) purchase(faker *gofakeit.Faker, mobile string) Purchase {
	p := Purchase{Mobile: mobile}

	if faker.Float64() >= nullDateRate {
		layout := DateLayout
		if faker.Float64() < altDateFormatRate {
			layout = AltDateLayout
		}

		d := faker.DateRange(g.start, g.end).Format(layout)
		p.Date = &d
	}

	if faker.Float64() >= nullAmountRate {
		cents := math.Round(faker.Float64Range(minAmount, maxAmount) * 100)
		amount := json.Number(strconv.FormatFloat(cents/100, 'f', 2, 64))
		p.Amount = &amount
	}

	if faker.Float64() >= nullStoreRate {
		store := faker.RandomString(Stores)
		p.Store = &store
	}

	return p
}
