package models

// InitializeRequest starts (or with Reset, restarts) a session with a cold-start fit.
// When Capacities is empty every cluster gets the configured default capacity;
// when K is zero it is taken from len(Capacities).
type InitializeRequest struct {
	Items      []ItemInput       `json:"items" yaml:"items"`
	K          int               `json:"k,omitempty" yaml:"k,omitempty"`
	Capacities []int             `json:"capacities,omitempty" yaml:"capacities,omitempty"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Reset      bool              `json:"reset,omitempty" yaml:"reset,omitempty"`
}

// AddItemsRequest inserts items into an active session. With Refit the whole session
// (retained items plus the new ones) is re-clustered from scratch under the current
// capacities; otherwise earlier assignments are left untouched.
type AddItemsRequest struct {
	Items  []ItemInput       `json:"items" yaml:"items"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Refit  bool              `json:"refit,omitempty" yaml:"refit,omitempty"`
}

// UpdateCapacitiesRequest replaces the per-cluster capacity limits.
type UpdateCapacitiesRequest struct {
	Capacities []int `json:"capacities"`
}

// LabelFor returns the ground-truth label for an item: the item's own label wins
// over the request-level map. Items without an ID only carry their own label.
func LabelFor(in ItemInput, labels map[string]string) (string, bool) {
	if in.Label != "" {
		return in.Label, true
	}
	if labels == nil || in.ID == "" {
		return "", false
	}
	l, ok := labels[in.ID]
	return l, ok
}
