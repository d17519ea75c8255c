package transform

import (
	"errors"
	"fmt"

	"custetl/internal/models"
)

// Transform errors.
var (
	ErrNoTransactions      = errors.New("no transactions to transform")
	ErrNoCustomers         = errors.New("no customers left to segment")
	ErrInvalidClusterCount = errors.New("cluster count must be at least 1")
	ErrTooFewCustomers     = errors.New("cluster count exceeds number of customers")
	ErrMatrixShape         = errors.New("matrix rows have inconsistent lengths")
	ErrEmptyMatrix         = errors.New("matrix is empty")
	ErrUnknownCategory     = errors.New("category was not seen during fit")
)

// Validator checks the degenerate-input conditions between transform stages.
// Malformed individual records are never an error; only empty or undersized
// tables are.
type Validator struct {
	clusterCount int
}

// NewValidator creates a validator for a run with k clusters.
func NewValidator(clusterCount int) *Validator {
	return &Validator{clusterCount: clusterCount}
}

// ValidateInput rejects an empty joined table and a non-positive k.
func (v *Validator) ValidateInput(rows []models.Transaction) error {
	if v.clusterCount < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidClusterCount, v.clusterCount)
	}

	if len(rows) == 0 {
		return ErrNoTransactions
	}

	return nil
}

// ValidateCleaned rejects a cleaned table without any customer.
func (v *Validator) ValidateCleaned(rows []models.Transaction) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: after cleaning", ErrNoCustomers)
	}

	return nil
}

// ValidateFeatures rejects a feature table that cannot be split into k segments.
func (v *Validator) ValidateFeatures(features []models.CustomerFeatures) error {
	if len(features) == 0 {
		return fmt.Errorf("%w: after feature building", ErrNoCustomers)
	}

	if v.clusterCount > len(features) {
		return fmt.Errorf("%w: k=%d, customers=%d", ErrTooFewCustomers, v.clusterCount, len(features))
	}

	return nil
}
