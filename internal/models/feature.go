// Package models defines the data exchanged with clustering sessions: feature vectors,
// requests, assignment results, status reports and persisted snapshots.
package models

// FeatureVector is the numeric descriptor of one item (typically one image).
// Values has the session's fixed dimensionality.
type FeatureVector struct {
	ID     string    `json:"id" yaml:"id"`
	Values []float64 `json:"values" yaml:"values"`
}

// Dim returns the vector's dimensionality.
func (v FeatureVector) Dim() int { return len(v.Values) }

// ItemInput is an item as submitted by a caller. Exactly one of Values or Descriptors
// is expected; Descriptors (e.g. SIFT keypoint descriptors) are mean-pooled into a
// single vector before assignment.
type ItemInput struct {
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	Values      []float64   `json:"values,omitempty" yaml:"values,omitempty"`
	Descriptors [][]float64 `json:"descriptors,omitempty" yaml:"descriptors,omitempty"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"` // ground-truth class, optional
}

// HasDescriptors reports whether the item carries a descriptor list rather than a vector.
func (in ItemInput) HasDescriptors() bool {
	return in.Values == nil && in.Descriptors != nil
}
