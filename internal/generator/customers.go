// Package generator produces synthetic customer profiles for local runs.
package generator

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"custetl/internal/models"
)

// Generator errors.
var (
	ErrInvalidRows  = errors.New("rows must be positive")
	ErrInvalidRatio = errors.New("ratio must be within [0, 1]")
)

// Genders are drawn uniformly.
var Genders = []string{"Male", "Female", "Other"}

const (
	minAge       = 18
	maxAge       = 70
	minIncome    = 150000.0
	maxIncome    = 3000000.0
	mobilePrefix = "+91"
	minMobile    = 6000000000
	maxMobile    = 9999999999
)

// Options control a generation run.
type Options struct {
	Rows int
	// DuplicateRatio is the share of Rows appended again as exact copies.
	DuplicateRatio float64
	// MissingRatio is the probability that a profile's age is left blank.
	// It is applied as is: 0.1 gives about 10% missing ages, not 5%.
	MissingRatio float64
	Seed         uint64
}

// DefaultOptions returns 1000 rows with 5% duplicates and 10% missing ages.
func DefaultOptions() Options {
	return Options{Rows: 1000, DuplicateRatio: 0.05, MissingRatio: 0.1, Seed: 42}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Rows < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRows, o.Rows)
	}

	if o.DuplicateRatio < 0 || o.DuplicateRatio > 1 {
		return fmt.Errorf("%w: duplicate_ratio=%v", ErrInvalidRatio, o.DuplicateRatio)
	}

	if o.MissingRatio < 0 || o.MissingRatio > 1 {
		return fmt.Errorf("%w: missing_ratio=%v", ErrInvalidRatio, o.MissingRatio)
	}

	return nil
}

// Customers returns Rows profiles plus Rows*DuplicateRatio exact duplicates,
// shuffled. The same options always give the same output.
func Customers(opts Options) ([]models.Customer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	faker := gofakeit.New(opts.Seed)
	dups := int(float64(opts.Rows) * opts.DuplicateRatio)
	out := make([]models.Customer, 0, opts.Rows+dups)

	for i := 0; i < opts.Rows; i++ {
		c := models.Customer{
			Name:   faker.Name(),
			Mobile: mobilePrefix + strconv.Itoa(faker.IntRange(minMobile, maxMobile)),
			Gender: faker.RandomString(Genders),
		}

		if faker.Float64() >= opts.MissingRatio {
			c.Age = sql.NullInt64{Int64: int64(faker.IntRange(minAge, maxAge)), Valid: true}
		}

		cents := math.Round(faker.Float64Range(minIncome, maxIncome) * 100)
		c.Income = decimal.NewNullDecimal(decimal.NewFromInt(int64(cents)).Shift(-2))

		out = append(out, c)
	}

	for i := 0; i < dups; i++ {
		out = append(out, out[faker.IntRange(0, opts.Rows-1)])
	}

	for i := len(out) - 1; i > 0; i-- {
		j := faker.IntRange(0, i)
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}
