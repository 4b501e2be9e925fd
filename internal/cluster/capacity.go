package cluster

import (
	"fmt"
	"slices"
)

// CapacityTable tracks the maximum and current occupancy of each cluster.
// It is not safe for concurrent use; sessions guard it with their own lock.
type CapacityTable struct {
	caps []int
	occ  []int
}

// NewCapacityTable returns an empty table. Every capacity must be at least 1.
func NewCapacityTable(caps []int) (*CapacityTable, error) {
	if len(caps) == 0 {
		return nil, NewConfigurationError("capacities", "k must be positive")
	}
	for i, c := range caps {
		if c < 1 {
			return nil, NewConfigurationError("capacities", fmt.Sprintf("capacity of cluster %d must be >= 1, got %d", i, c))
		}
	}
	return &CapacityTable{caps: slices.Clone(caps), occ: make([]int, len(caps))}, nil
}

// UniformCapacities returns k copies of capacity.
func UniformCapacities(k, capacity int) []int {
	if k <= 0 {
		return nil
	}
	caps := make([]int, k)
	for i := range caps {
		caps[i] = capacity
	}
	return caps
}

// K returns the number of clusters.
func (t *CapacityTable) K() int { return len(t.caps) }

// Get returns the capacity of cluster i.
func (t *CapacityTable) Get(i int) int { return t.caps[i] }

// Occupancy returns the number of members of cluster i.
func (t *CapacityTable) Occupancy(i int) int { return t.occ[i] }

// Available returns the free slots of cluster i.
func (t *CapacityTable) Available(i int) int { return t.caps[i] - t.occ[i] }

// TotalAvailable returns the free slots across all clusters.
func (t *CapacityTable) TotalAvailable() int {
	var n int
	for i := range t.caps {
		n += t.Available(i)
	}
	return n
}

// TotalCapacity returns the sum of all capacities.
func (t *CapacityTable) TotalCapacity() int {
	var n int
	for _, c := range t.caps {
		n += c
	}
	return n
}

// Set replaces all capacities. The update is rejected as a whole when the length
// differs from K, a value is below 1, or a value is below the cluster's occupancy.
// Members are never moved.
func (t *CapacityTable) Set(caps []int) error {
	if len(caps) != len(t.caps) {
		return NewConfigurationError("update capacities", fmt.Sprintf("expected %d capacities, got %d", len(t.caps), len(caps)))
	}
	for i, c := range caps {
		if c < 1 {
			return NewConfigurationError("update capacities", fmt.Sprintf("capacity of cluster %d must be >= 1, got %d", i, c))
		}
		if c < t.occ[i] {
			return NewConfigurationError("update capacities", fmt.Sprintf("capacity of cluster %d cannot shrink below its %d members (got %d)", i, t.occ[i], c))
		}
	}
	copy(t.caps, caps)
	return nil
}

// Admit records one more member in cluster i. It returns false when i is full.
func (t *CapacityTable) Admit(i int) bool {
	if t.occ[i] >= t.caps[i] {
		return false
	}
	t.occ[i]++
	return true
}

// ResetOccupancy empties every cluster while keeping capacities.
func (t *CapacityTable) ResetOccupancy() {
	clear(t.occ)
}

// Capacities returns a copy of the capacity list.
func (t *CapacityTable) Capacities() []int { return slices.Clone(t.caps) }

// Counts returns a copy of the occupancy list.
func (t *CapacityTable) Counts() []int { return slices.Clone(t.occ) }

// AvailableSpaces returns the free slots per cluster.
func (t *CapacityTable) AvailableSpaces() []int {
	out := make([]int, len(t.caps))
	for i := range t.caps {
		out[i] = t.Available(i)
	}
	return out
}

// Clone returns an independent copy.
func (t *CapacityTable) Clone() *CapacityTable {
	return &CapacityTable{caps: slices.Clone(t.caps), occ: slices.Clone(t.occ)}
}
