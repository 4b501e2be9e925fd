// Package cluster implements capacity-constrained clustering: per-cluster capacity
// limits, incrementally maintained centroids, and a greedy nearest-feasible-centroid
// assignment engine supporting both cold-start fits and incremental insertion.
package cluster

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/vector"
)

// DefaultMaxIterations bounds the refinement passes of a cold-start fit.
const DefaultMaxIterations = 100

// Engine assigns vectors to clusters without exceeding any cluster's capacity.
// It holds no session state and is safe for concurrent use.
type Engine struct {
	distance vector.Func
	maxIter  int
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxIterations sets the pass limit of a cold-start fit. Values below 1 are ignored.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

// WithLogger sets a logger for debug output (iterations, convergence).
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine using distance. A nil distance selects euclidean.
func NewEngine(distance vector.Func, opts ...EngineOption) *Engine {
	if distance == nil {
		distance = vector.Euclidean
	}
	e := &Engine{distance: distance, maxIter: DefaultMaxIterations, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Distance returns the engine's distance function.
func (e *Engine) Distance() vector.Func { return e.distance }

// Fit is the outcome of a cold-start fit.
type Fit struct {
	// Assignments[i] is the cluster of vectors[i].
	Assignments []int
	Centroids   *CentroidStore
	Capacity    *CapacityTable
	Iterations  int
	Converged   bool
}

// Fit clusters vectors from scratch into len(caps) clusters.
//
// Seeds are the first k distinct vectors in input order; clusters left without a
// seed rank after all seeded ones. Each pass assigns every vector, in input order,
// to the nearest cluster that still has room (ties go to the lowest index), then
// recomputes centroids. Passes stop when assignments are stable or the iteration
// cap is reached. Nothing is returned unless every vector fits.
func (e *Engine) Fit(vectors [][]float64, caps []int) (*Fit, error) {
	table, err := NewCapacityTable(caps)
	if err != nil {
		return nil, err
	}
	n := len(vectors)
	if n == 0 {
		return nil, NewConfigurationError("fit", "no vectors supplied")
	}
	if total := table.TotalCapacity(); n > total {
		return nil, &CapacityExceededError{Cluster: -1, Requested: n, Available: total}
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &DimensionMismatchError{ItemID: fmt.Sprintf("#%d", i), Expected: dim, Actual: len(v)}
		}
	}

	k := table.K()
	cents := seedCentroids(vectors, k)
	store := NewCentroidStore(k, dim)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	next := make([]int, n)

	iter, converged := 0, false
	for iter < e.maxIter {
		iter++
		table.ResetOccupancy()
		for i, v := range vectors {
			c := e.nearestFeasible(v, cents, table)
			if c < 0 {
				// Unreachable: n <= total capacity guarantees a free slot.
				return nil, &CapacityExceededError{Cluster: -1, Requested: n, Available: table.TotalAvailable()}
			}
			table.Admit(c)
			next[i] = c
		}
		store.Clear()
		for i, v := range vectors {
			store.Add(next[i], v)
		}
		for j := range cents {
			cents[j], _ = store.Centroid(j)
		}
		if slices.Equal(assign, next) {
			converged = true
			break
		}
		copy(assign, next)
	}

	e.logger.Debug("fit finished",
		zap.Int("vectors", n),
		zap.Int("k", k),
		zap.Int("iterations", iter),
		zap.Bool("converged", converged),
	)
	return &Fit{Assignments: assign, Centroids: store, Capacity: table, Iterations: iter, Converged: converged}, nil
}

// Extend places vectors one at a time against the current centroids, updating the
// receiving cluster's running centroid after each placement. Earlier members are
// never moved. table and store are modified in place, so callers that need
// all-or-nothing semantics pass clones and commit them on success.
func (e *Engine) Extend(vectors [][]float64, table *CapacityTable, store *CentroidStore) ([]int, error) {
	if table.K() != store.K() {
		return nil, NewConfigurationError("extend", fmt.Sprintf("capacity table has %d clusters, centroid store %d", table.K(), store.K()))
	}
	if avail := table.TotalAvailable(); len(vectors) > avail {
		return nil, &CapacityExceededError{Cluster: -1, Requested: len(vectors), Available: avail}
	}
	for i, v := range vectors {
		if len(v) != store.Dim() {
			return nil, &DimensionMismatchError{ItemID: fmt.Sprintf("#%d", i), Expected: store.Dim(), Actual: len(v)}
		}
	}

	cents := make([][]float64, store.K())
	for j := range cents {
		cents[j], _ = store.Centroid(j)
	}
	out := make([]int, len(vectors))
	for i, v := range vectors {
		c := e.nearestFeasible(v, cents, table)
		if c < 0 {
			return nil, &CapacityExceededError{Cluster: -1, Requested: len(vectors) - i, Available: 0}
		}
		table.Admit(c)
		store.Add(c, v)
		cents[c], _ = store.Centroid(c)
		out[i] = c
	}
	return out, nil
}

// Rank returns cluster indices ordered by ascending distance from v to each centroid,
// ties broken by lower index. Clusters with a nil centroid come last.
func (e *Engine) Rank(v []float64, cents [][]float64) []int {
	dists := make([]float64, len(cents))
	order := make([]int, len(cents))
	for j, c := range cents {
		order[j] = j
		dists[j] = e.dist(v, c)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case dists[a] < dists[b]:
			return -1
		case dists[a] > dists[b]:
			return 1
		default:
			return a - b
		}
	})
	return order
}

// nearestFeasible returns the closest cluster with a free slot, or -1 if all are full.
func (e *Engine) nearestFeasible(v []float64, cents [][]float64, table *CapacityTable) int {
	for _, j := range e.Rank(v, cents) {
		if table.Available(j) > 0 {
			return j
		}
	}
	return -1
}

func (e *Engine) dist(v, centroid []float64) float64 {
	if centroid == nil {
		return math.Inf(1)
	}
	return e.distance(v, centroid)
}

// seedCentroids picks the first k distinct vectors as initial centroids.
// Missing seeds are nil.
func seedCentroids(vectors [][]float64, k int) [][]float64 {
	cents := make([][]float64, k)
	found := 0
	for _, v := range vectors {
		if found == k {
			break
		}
		dup := false
		for _, c := range cents[:found] {
			if vector.Equal(c, v) {
				dup = true
				break
			}
		}
		if !dup {
			cents[found] = slices.Clone(v)
			found++
		}
	}
	return cents
}
