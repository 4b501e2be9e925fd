package metrics

import (
	"time"

	"github.com/hyperjump/capcluster/internal/models"
)

// NopRecorder discards every event.
type NopRecorder struct{}

var _ Recorder = (*NopRecorder)(nil)

// NewNop returns a recorder that discards everything.
func NewNop() *NopRecorder {
	return &NopRecorder{}
}

// ObserveOperation discards the operation.
func (n *NopRecorder) ObserveOperation(_ /* family */, _ /* op */ string, _ error, _ time.Duration) {}

// SetOccupancy discards the capacity table.
func (n *NopRecorder) SetOccupancy(_ string, _, _ []int) {}

// SetQuality discards the scores.
func (n *NopRecorder) SetQuality(_ string, _ *models.MetricsSnapshot) {}

// ForgetSession is a no-op.
func (n *NopRecorder) ForgetSession(_ string) {}
