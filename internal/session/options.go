package session

import (
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/cluster"
	"github.com/hyperjump/capcluster/internal/metrics"
	"github.com/hyperjump/capcluster/internal/models"
)

// DefaultCapacity is the per-cluster capacity used when only k is given.
const DefaultCapacity = 100

// CommitHook is called with the write lock held after every committed mutation,
// so calls arrive in mutation order. snap is nil after a reset.
type CommitHook func(family string, snap *models.SessionSnapshot)

type options struct {
	distance        string
	defaultCapacity int
	maxIterations   int
	normalize       bool
	workers         int
	logger          *zap.Logger
	recorder        metrics.Recorder
	onCommit        CommitHook
}

func defaultOptions() options {
	return options{
		defaultCapacity: DefaultCapacity,
		maxIterations:   cluster.DefaultMaxIterations,
		logger:          zap.NewNop(),
		recorder:        metrics.NewNop(),
	}
}

// Option configures a Session or, through NewManager, every session of a Manager.
type Option func(*options)

// WithDistance selects the distance metric by name (euclidean, sqeuclidean, cosine).
func WithDistance(name string) Option {
	return func(o *options) { o.distance = name }
}

// WithDefaultCapacity sets the capacity given to every cluster when a cold start
// supplies k without capacities.
func WithDefaultCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultCapacity = n
		}
	}
}

// WithMaxIterations bounds the refinement passes of a cold-start fit.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithNormalize L2-normalizes incoming vectors before assignment.
func WithNormalize(enabled bool) Option {
	return func(o *options) { o.normalize = enabled }
}

// WithMetricWorkers bounds the goroutines used to compute quality scores.
func WithMetricWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the operational metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithCommitHook registers a hook run after every committed mutation.
func WithCommitHook(h CommitHook) Option {
	return func(o *options) { o.onCommit = h }
}
