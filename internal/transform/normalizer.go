package transform

import (
	"fmt"
	"math"

	"custetl/internal/models"
)

// ScaledColumns are the feature columns fed to the segmenter, in matrix order.
var ScaledColumns = []string{
	"age",
	"income",
	"clv",
	"avg_purchase_amount",
	"purchase_count",
	"days_since_last_purchase",
	"purchase_frequency",
}

// CategoryEncoder maps category values to integer codes in first-seen order.
type CategoryEncoder struct {
	codes  map[string]int
	values []string
}

// NewCategoryEncoder creates an empty encoder.
func NewCategoryEncoder() *CategoryEncoder {
	return &CategoryEncoder{codes: make(map[string]int)}
}

// Fit registers every unseen value, assigning the next free code.
func (e *CategoryEncoder) Fit(values []string) *CategoryEncoder {
	for _, v := range values {
		if _, ok := e.codes[v]; ok {
			continue
		}

		e.codes[v] = len(e.values)
		e.values = append(e.values, v)
	}

	return e
}

// Encode returns the code of a fitted value.
func (e *CategoryEncoder) Encode(value string) (int, error) {
	code, ok := e.codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}

	return code, nil
}

// Classes returns the fitted values indexed by code.
func (e *CategoryEncoder) Classes() []string {
	return append([]string(nil), e.values...)
}

// zeroScaleTolerance is the relative deviation under which a column is treated
// as constant; summation error on identical values stays well below it.
const zeroScaleTolerance = 1e-12

// StandardScaler standardizes columns to zero mean and unit variance using
// population statistics.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes per-column mean and standard deviation. Columns with zero
// variance get a scale of 1, so they transform to all zeros.
func (s *StandardScaler) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return ErrEmptyMatrix
	}

	cols := len(matrix[0])
	n := float64(len(matrix))

	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)

	for _, row := range matrix {
		if len(row) != cols {
			return fmt.Errorf("%w: row has %d columns, want %d", ErrMatrixShape, len(row), cols)
		}

		for j, v := range row {
			s.Mean[j] += v
		}
	}

	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range matrix {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}

	for j := range s.Scale {
		std := math.Sqrt(s.Scale[j] / n)
		if std <= zeroScaleTolerance*math.Max(1, math.Abs(s.Mean[j])) {
			std = 1
		}

		s.Scale[j] = std
	}

	return nil
}

// Transform returns a new standardized matrix.
func (s *StandardScaler) Transform(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))

	for i, row := range matrix {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}

		out[i] = scaled
	}

	return out
}

// Normalized is the output of Normalize: the feature table with encoded
// gender and the scaled matrix, row-aligned.
type Normalized struct {
	Encoder  *CategoryEncoder
	Scaler   *StandardScaler
	Features []models.CustomerFeatures
	Matrix   [][]float64
}

// Normalize encodes gender and scales ScaledColumns. Fit and transform run on
// the same table. Row i of Matrix always describes Features[i].
func Normalize(features []models.CustomerFeatures) (*Normalized, error) {
	if len(features) == 0 {
		return nil, ErrNoCustomers
	}

	genders := make([]string, len(features))
	for i, f := range features {
		genders[i] = f.Gender
	}

	encoder := NewCategoryEncoder().Fit(genders)

	encoded := make([]models.CustomerFeatures, len(features))
	raw := make([][]float64, len(features))

	for i, f := range features {
		code, err := encoder.Encode(f.Gender)
		if err != nil {
			return nil, err
		}

		f.GenderCode = code
		encoded[i] = f
		raw[i] = featureRow(f)
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(raw); err != nil {
		return nil, err
	}

	return &Normalized{
		Encoder:  encoder,
		Scaler:   scaler,
		Features: encoded,
		Matrix:   scaler.Transform(raw),
	}, nil
}

func featureRow(f models.CustomerFeatures) []float64 {
	return []float64{
		float64(f.Age),
		f.Income.InexactFloat64(),
		f.CLV.InexactFloat64(),
		f.AvgPurchaseAmount.InexactFloat64(),
		float64(f.PurchaseCount),
		float64(f.DaysSinceLastPurchase),
		f.PurchaseFrequency,
	}
}
