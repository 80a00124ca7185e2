package domain

import (
	"fmt"
	"math"
)

// ZeroVector returns the canonical default query vector used when no query text is given.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// ValidateVector checks that v is a finite vector of exactly dim elements.
func ValidateVector(v []float32, dim int) error {
	if len(v) != dim {
		return NewDimensionMismatch(len(v), dim)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return NewMalformedEmbedding(fmt.Sprintf("non-finite value at position %d", i))
		}
	}
	return nil
}
