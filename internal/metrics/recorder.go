// Package metrics exports operational metrics for clustering sessions.
package metrics

import (
	"errors"
	"time"

	"github.com/hyperjump/capcluster/internal/cluster"
	"github.com/hyperjump/capcluster/internal/models"
)

// Operation names used as the "op" label.
const (
	OpInitialize       = "initialize"
	OpAddItems         = "add_items"
	OpUpdateCapacities = "update_capacities"
	OpStatus           = "status"
	OpReset            = "reset"
	OpRestore          = "restore"
)

// Recorder receives session events. Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveOperation records one operation on a session and its outcome.
	ObserveOperation(family, op string, err error, elapsed time.Duration)
	// SetOccupancy publishes the capacity table of an active session.
	SetOccupancy(family string, capacities, counts []int)
	// SetQuality publishes the latest quality scores of a session.
	SetQuality(family string, snap *models.MetricsSnapshot)
	// ForgetSession drops every series of a reset session.
	ForgetSession(family string)
}

// Outcome classifies err for the "outcome" label.
func Outcome(err error) string {
	var (
		dimErr *cluster.DimensionMismatchError
		capErr *cluster.CapacityExceededError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &dimErr):
		return "dimension_mismatch"
	case errors.As(err, &capErr):
		return "capacity_exceeded"
	case errors.Is(err, cluster.ErrConfiguration):
		return "configuration_error"
	default:
		return "error"
	}
}
