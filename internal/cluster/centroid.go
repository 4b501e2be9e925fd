package cluster

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// CentroidStore keeps a running sum and member count per cluster so centroids can
// be updated one member at a time. An empty cluster has no centroid.
type CentroidStore struct {
	dim    int
	sums   [][]float64
	counts []int
}

// NewCentroidStore returns a store for k empty clusters of dimension dim.
func NewCentroidStore(k, dim int) *CentroidStore {
	s := &CentroidStore{dim: dim, sums: make([][]float64, k), counts: make([]int, k)}
	for i := range s.sums {
		s.sums[i] = make([]float64, dim)
	}
	return s
}

// Dim returns the vector dimension.
func (s *CentroidStore) Dim() int { return s.dim }

// K returns the number of clusters.
func (s *CentroidStore) K() int { return len(s.sums) }

// Add folds v into cluster i.
func (s *CentroidStore) Add(i int, v []float64) {
	floats.Add(s.sums[i], v)
	s.counts[i]++
}

// Count returns the number of members folded into cluster i.
func (s *CentroidStore) Count(i int) int { return s.counts[i] }

// Centroid returns the mean of cluster i, or false when the cluster is empty.
func (s *CentroidStore) Centroid(i int) ([]float64, bool) {
	if s.counts[i] == 0 {
		return nil, false
	}
	c := slices.Clone(s.sums[i])
	floats.Scale(1/float64(s.counts[i]), c)
	return c, true
}

// Snapshot returns the centroid of cluster i, or a zero vector when it is empty.
func (s *CentroidStore) Snapshot(i int) []float64 {
	if c, ok := s.Centroid(i); ok {
		return c
	}
	return make([]float64, s.dim)
}

// All returns the snapshot of every cluster.
func (s *CentroidStore) All() [][]float64 {
	out := make([][]float64, len(s.sums))
	for i := range s.sums {
		out[i] = s.Snapshot(i)
	}
	return out
}

// Clear empties every cluster.
func (s *CentroidStore) Clear() {
	for i := range s.sums {
		clear(s.sums[i])
	}
	clear(s.counts)
}

// Clone returns an independent copy.
func (s *CentroidStore) Clone() *CentroidStore {
	c := &CentroidStore{dim: s.dim, sums: make([][]float64, len(s.sums)), counts: slices.Clone(s.counts)}
	for i, sum := range s.sums {
		c.sums[i] = slices.Clone(sum)
	}
	return c
}
