package models

// AssignmentResult is the placement of one item, returned to callers only.
type AssignmentResult struct {
	ItemID   string    `json:"item_id"`
	Cluster  int       `json:"cluster"`
	Centroid []float64 `json:"centroid"`
}

// InitializeResponse is returned by a cold-start fit.
type InitializeResponse struct {
	Family      string             `json:"family"`
	Assignments []AssignmentResult `json:"assignments"`
	Centroids   [][]float64        `json:"centroids"`
	Iterations  int                `json:"iterations"`
	Metrics     *MetricsSnapshot   `json:"metrics,omitempty"`
}

// AddItemsResponse is returned after items were inserted.
type AddItemsResponse struct {
	Family      string             `json:"family"`
	Assignments []AssignmentResult `json:"assignments"`
	Refit       bool               `json:"refit,omitempty"`
	Moved       int                `json:"moved,omitempty"` // retained items that changed cluster during a refit
	Metrics     *MetricsSnapshot   `json:"metrics,omitempty"`
}

// UpdateCapacitiesResponse reports the capacity table after an update.
type UpdateCapacitiesResponse struct {
	Family          string           `json:"family"`
	Capacities      []int            `json:"capacities"`
	CurrentCounts   []int            `json:"current_counts"`
	AvailableSpaces []int            `json:"available_spaces"`
	Metrics         *MetricsSnapshot `json:"metrics,omitempty"`
}
