// Package quality computes cluster-quality scores for a clustering session:
// the internal Dunn index and silhouette coefficient, and the external NMI, ARI
// and AMI scores against ground-truth labels.
package quality

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/vector"
)

// ErrMetricUnavailable is wrapped by every error reporting that a score is
// undefined for the current assignment. It is not a failure of the session.
var ErrMetricUnavailable = errors.New("metric unavailable")

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMetricUnavailable, fmt.Sprintf(format, args...))
}

// DefaultWorkers is the number of goroutines used for pairwise distance work.
const DefaultWorkers = 4

// rowsPerTask is the number of rows of the distance matrix handled per goroutine.
const rowsPerTask = 64

// Evaluator computes quality scores. It is stateless and safe for concurrent use.
type Evaluator struct {
	distance vector.Func
	workers  int
	logger   *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers bounds the goroutines used by Dunn and Silhouette.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator returns an evaluator measuring with distance (euclidean when nil).
func NewEvaluator(distance vector.Func, opts ...Option) *Evaluator {
	if distance == nil {
		distance = vector.Euclidean
	}
	e := &Evaluator{distance: distance, workers: DefaultWorkers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes every score for vectors assigned to clusters by assign.
// labels[i] is the ground-truth label of item i, or nil when none was supplied;
// external scores need a label for every item. Undefined scores are left nil
// and the reason is recorded in Unavailable. Only context cancellation is
// returned as an error.
func (e *Evaluator) Evaluate(ctx context.Context, vectors [][]float64, assign []int, labels []*string) (*models.MetricsSnapshot, error) {
	snap := &models.MetricsSnapshot{Unavailable: map[string]string{}}

	dunn, err := e.Dunn(ctx, vectors, assign)
	switch {
	case err == nil:
		snap.DunnIndex = &dunn
	case errors.Is(err, ErrMetricUnavailable):
		snap.Unavailable[models.MetricDunn] = err.Error()
	default:
		return nil, err
	}

	sil, err := e.Silhouette(ctx, vectors, assign)
	switch {
	case err == nil:
		snap.Silhouette = &sil
	case errors.Is(err, ErrMetricUnavailable):
		snap.Unavailable[models.MetricSilhouette] = err.Error()
	default:
		return nil, err
	}

	ext, err := External(labels, assign)
	if err != nil {
		snap.Unavailable[models.MetricExternal] = err.Error()
	} else {
		snap.External = ext
	}

	if len(snap.Unavailable) == 0 {
		snap.Unavailable = nil
	}
	e.logger.Debug("evaluated clustering",
		zap.Int("items", len(vectors)),
		zap.Bool("dunn", snap.DunnIndex != nil),
		zap.Bool("silhouette", snap.Silhouette != nil),
		zap.Bool("external", snap.External != nil),
	)
	return snap, nil
}

// External computes NMI, ARI and AMI when every item carries a label.
func External(labels []*string, assign []int) (*models.ExternalMetrics, error) {
	if len(labels) != len(assign) {
		return nil, fmt.Errorf("label count %d does not match assignment count %d", len(labels), len(assign))
	}
	if len(assign) < 2 {
		return nil, unavailable("external scores need at least 2 items")
	}
	truth := make([]string, len(labels))
	missing := 0
	for i, l := range labels {
		if l == nil {
			missing++
			continue
		}
		truth[i] = *l
	}
	if missing == len(labels) {
		return nil, unavailable("no ground-truth labels supplied")
	}
	if missing > 0 {
		return nil, unavailable("ground-truth labels missing for %d of %d items", missing, len(labels))
	}

	ct := newContingency(truth, assign)
	return &models.ExternalMetrics{
		NMI: ct.nmi(),
		ARI: ct.ari(),
		AMI: ct.ami(),
	}, nil
}
