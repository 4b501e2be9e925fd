package cluster

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every ConfigurationError matches ErrConfiguration via errors.Is;
// the remaining sentinels are specific configuration failures.
var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNoActiveModel is returned when an operation needs an initialized session.
	ErrNoActiveModel = errors.New("no active model")

	// ErrAlreadyActive is returned by a cold start on an active session without reset.
	ErrAlreadyActive = errors.New("model already active")

	// ErrDuplicateItem is returned when an item ID is submitted twice.
	ErrDuplicateItem = errors.New("duplicate item")
)

// ConfigurationError reports a bad k, capacity list, input batch or session state.
type ConfigurationError struct {
	Op     string
	Reason string
	cause  error
}

// NewConfigurationError returns a ConfigurationError for op.
func NewConfigurationError(op, reason string) *ConfigurationError {
	return &ConfigurationError{Op: op, Reason: reason}
}

// WrapConfigurationError returns a ConfigurationError for op that also matches cause.
func WrapConfigurationError(op string, cause error, reason string) *ConfigurationError {
	return &ConfigurationError{Op: op, Reason: reason, cause: cause}
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("%s: configuration error: %s", e.Op, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// DimensionMismatchError indicates a vector whose length differs from the session dimension.
type DimensionMismatchError struct {
	ItemID   string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for item %q: expected %d, got %d", e.ItemID, e.Expected, e.Actual)
}

// CapacityExceededError indicates a batch that does not fit. Cluster is -1 when the
// shortfall is across the whole session rather than a single cluster.
type CapacityExceededError struct {
	Cluster   int
	Requested int
	Available int
}

func (e *CapacityExceededError) Error() string {
	if e.Cluster < 0 {
		return fmt.Sprintf("capacity exceeded: %d items requested, %d slots available across all clusters", e.Requested, e.Available)
	}
	return fmt.Sprintf("capacity exceeded in cluster %d: %d requested, %d available", e.Cluster, e.Requested, e.Available)
}
