package models

// Metric names used as keys in MetricsSnapshot.Unavailable.
const (
	MetricDunn       = "dunn_index"
	MetricSilhouette = "silhouette_coefficient"
	MetricExternal   = "external"
)

// ExternalMetrics compares predicted clusters with ground-truth labels.
type ExternalMetrics struct {
	NMI float64 `json:"nmi"`
	ARI float64 `json:"ari"`
	AMI float64 `json:"ami"`
}

// MetricsSnapshot holds cluster-quality scores derived from the current assignment.
// A nil score means "not available"; the reason is recorded in Unavailable.
type MetricsSnapshot struct {
	DunnIndex   *float64          `json:"dunn_index"`
	Silhouette  *float64          `json:"silhouette_coefficient"`
	External    *ExternalMetrics  `json:"external,omitempty"`
	Unavailable map[string]string `json:"unavailable,omitempty"`
}

// Status describes a session. When Active is false every other field except Family
// is zero.
type Status struct {
	Family          string           `json:"family"`
	Active          bool             `json:"active"`
	NumClusters     int              `json:"num_clusters,omitempty"`
	Dimension       int              `json:"dimension,omitempty"`
	Distance        string           `json:"distance,omitempty"`
	Capacities      []int            `json:"capacities,omitempty"`
	CurrentCounts   []int            `json:"current_counts,omitempty"`
	AvailableSpaces []int            `json:"available_spaces,omitempty"`
	TotalItems      int              `json:"total_items,omitempty"`
	Metrics         *MetricsSnapshot `json:"metrics,omitempty"`
}
