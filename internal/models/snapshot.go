package models

import "time"

// SessionSnapshot is the persisted form of an active session. Items are kept in
// insertion order so a restored session replays identically.
type SessionSnapshot struct {
	Family     string         `json:"family"`
	K          int            `json:"k"`
	Dimension  int            `json:"dimension"`
	Distance   string         `json:"distance"`
	Capacities []int          `json:"capacities"`
	Items      []SnapshotItem `json:"items"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SnapshotItem is one retained item with its cluster.
type SnapshotItem struct {
	ID      string    `json:"id"`
	Values  []float64 `json:"values"`
	Cluster int       `json:"cluster"`
	Label   *string   `json:"label,omitempty"`
}

// Counts returns the number of items per cluster.
func (s *SessionSnapshot) Counts() []int {
	counts := make([]int, s.K)
	for _, it := range s.Items {
		if it.Cluster >= 0 && it.Cluster < s.K {
			counts[it.Cluster]++
		}
	}
	return counts
}
