// Package vector provides distance functions and vector helpers for clustering.
package vector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Func returns the distance between two vectors of equal length.
type Func func(a, b []float64) float64

// Metric names a distance function.
type Metric string

const (
	// MetricEuclidean is the L2 distance. Default.
	MetricEuclidean Metric = "euclidean"
	// MetricSquaredEuclidean is the squared L2 distance; same ranking as euclidean, cheaper.
	MetricSquaredEuclidean Metric = "sqeuclidean"
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"
)

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean returns the squared L2 distance between a and b.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineDistance returns 1 - cos(a, b). A zero-norm operand has similarity -1,
// so its distance to anything is 2.
func CosineDistance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 2
	}
	sim := floats.Dot(a, b) / (na * nb)
	return 1 - math.Max(-1, math.Min(1, sim))
}

// Provider returns the distance function for the given metric name.
// An empty name selects euclidean.
func Provider(name string) (Func, error) {
	switch Metric(name) {
	case MetricEuclidean, "":
		return Euclidean, nil
	case MetricSquaredEuclidean:
		return SquaredEuclidean, nil
	case MetricCosine:
		return CosineDistance, nil
	default:
		return nil, fmt.Errorf("unknown distance: %s (supported: euclidean, sqeuclidean, cosine)", name)
	}
}

// Canonical returns the canonical metric name for name ("" becomes "euclidean").
func Canonical(name string) string {
	if name == "" {
		return string(MetricEuclidean)
	}
	return name
}
