package vector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MeanPool averages a list of equal-length descriptors into one vector.
// It returns an error for an empty list or ragged descriptors.
func MeanPool(descriptors [][]float64) ([]float64, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no descriptors to pool")
	}
	dim := len(descriptors[0])
	if dim == 0 {
		return nil, fmt.Errorf("descriptor 0 is empty")
	}
	out := make([]float64, dim)
	for i, d := range descriptors {
		if len(d) != dim {
			return nil, fmt.Errorf("descriptor %d has length %d, expected %d", i, len(d), dim)
		}
		floats.Add(out, d)
	}
	floats.Scale(1/float64(len(descriptors)), out)
	return out, nil
}

// NormalizeL2 returns a copy of v scaled to unit L2 norm.
// A zero vector is returned unchanged.
func NormalizeL2(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	n := floats.Norm(out, 2)
	if n == 0 {
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// IsFinite reports whether every component of v is neither NaN nor infinite.
func IsFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold the same components.
func Equal(a, b []float64) bool {
	return floats.Equal(a, b)
}
