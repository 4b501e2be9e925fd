// Package session manages named clustering sessions, one per descriptor family.
// A Session owns its capacity table, centroids and item registry behind its own
// lock; a Manager keeps independent sessions keyed by family.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/cluster"
	"github.com/hyperjump/capcluster/internal/metrics"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/quality"
	"github.com/hyperjump/capcluster/internal/vector"
)

// item is one accepted vector. Its Values are never mutated after acceptance.
type item struct {
	models.FeatureVector
	cluster int
	label   *string
}

// Session is one clustering model. Mutations are serialized by a write lock;
// Status runs under the read lock and scores a copy outside it.
type Session struct {
	family    string
	opts      options
	engine    *cluster.Engine
	evaluator *quality.Evaluator

	mu     sync.RWMutex
	active bool
	dim    int
	table  *cluster.CapacityTable
	store  *cluster.CentroidStore
	items  []item
	index  map[string]int
}

// New returns an inactive session for family.
func New(family string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.distance = vector.Canonical(o.distance)
	dist, err := vector.Provider(o.distance)
	if err != nil {
		return nil, cluster.NewConfigurationError("new session", err.Error())
	}
	logger := o.logger.With(zap.String("family", family))
	o.logger = logger

	return &Session{
		family:    family,
		opts:      o,
		engine:    cluster.NewEngine(dist, cluster.WithMaxIterations(o.maxIterations), cluster.WithLogger(logger)),
		evaluator: quality.NewEvaluator(dist, quality.WithWorkers(o.workers), quality.WithLogger(logger)),
	}, nil
}

// Family returns the session's family.
func (s *Session) Family() string { return s.family }

// Active reports whether the session has a fitted model.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Initialize runs a cold-start fit on req.Items. An active session is only
// replaced when req.Reset is set. On failure the previous state is kept.
func (s *Session) Initialize(ctx context.Context, req models.InitializeRequest) (resp *models.InitializeResponse, err error) {
	defer s.observe(metrics.OpInitialize, time.Now(), &err)

	resp, v, err := s.initialize(req)
	if err != nil {
		return nil, err
	}
	resp.Metrics = s.score(ctx, v)
	return resp, nil
}

func (s *Session) initialize(req models.InitializeRequest) (*models.InitializeResponse, *view, error) {
	const op = "initialize"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active && !req.Reset {
		return nil, nil, cluster.WrapConfigurationError(op, cluster.ErrAlreadyActive,
			fmt.Sprintf("session %q is already active; set reset to start over", s.family))
	}
	caps, err := s.resolveCapacities(req.K, req.Capacities)
	if err != nil {
		return nil, nil, err
	}
	in, err := prepareItems(op, req.Items, req.Labels, 0, nil, s.opts.normalize)
	if err != nil {
		return nil, nil, err
	}
	fit, err := s.engine.Fit(in.vectors, caps)
	if err != nil {
		return nil, nil, err
	}

	items := make([]item, len(in.ids))
	index := make(map[string]int, len(in.ids))
	for i, id := range in.ids {
		items[i] = item{FeatureVector: models.FeatureVector{ID: id, Values: in.vectors[i]}, cluster: fit.Assignments[i], label: in.labels[i]}
		index[id] = i
	}
	s.active = true
	s.dim = fit.Centroids.Dim()
	s.table = fit.Capacity
	s.store = fit.Centroids
	s.items = items
	s.index = index
	s.commitLocked()

	s.opts.logger.Info("session initialized",
		zap.Int("k", s.table.K()),
		zap.Int("items", len(items)),
		zap.Int("dimension", s.dim),
		zap.Int("iterations", fit.Iterations),
		zap.Bool("converged", fit.Converged),
	)

	return &models.InitializeResponse{
		Family:      s.family,
		Assignments: s.results(in.ids),
		Centroids:   s.store.All(),
		Iterations:  fit.Iterations,
	}, s.viewLocked(), nil
}

func (s *Session) resolveCapacities(k int, caps []int) ([]int, error) {
	const op = "initialize"
	switch {
	case len(caps) > 0:
		if k > 0 && k != len(caps) {
			return nil, cluster.NewConfigurationError(op, fmt.Sprintf("k is %d but %d capacities were given", k, len(caps)))
		}
		return slices.Clone(caps), nil
	case k <= 0:
		return nil, cluster.NewConfigurationError(op, fmt.Sprintf("k must be positive, got %d", k))
	default:
		return cluster.UniformCapacities(k, s.opts.defaultCapacity), nil
	}
}

// AddItems inserts req.Items into the active session. Without Refit each item is
// placed against the current centroids and earlier members stay put; with Refit
// every item, old and new, is re-clustered from scratch under the current
// capacities. The batch is all-or-nothing.
func (s *Session) AddItems(ctx context.Context, req models.AddItemsRequest) (resp *models.AddItemsResponse, err error) {
	defer s.observe(metrics.OpAddItems, time.Now(), &err)

	resp, v, err := s.addItems(req)
	if err != nil {
		return nil, err
	}
	resp.Metrics = s.score(ctx, v)
	return resp, nil
}

func (s *Session) addItems(req models.AddItemsRequest) (*models.AddItemsResponse, *view, error) {
	const op = "add items"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, nil, s.errInactive(op)
	}
	in, err := prepareItems(op, req.Items, req.Labels, s.dim, s.index, s.opts.normalize)
	if err != nil {
		return nil, nil, err
	}
	if avail := s.table.TotalAvailable(); len(in.vectors) > avail {
		return nil, nil, &cluster.CapacityExceededError{Cluster: -1, Requested: len(in.vectors), Available: avail}
	}

	resp := &models.AddItemsResponse{Family: s.family, Refit: req.Refit}
	if req.Refit {
		moved, err := s.refitLocked(in)
		if err != nil {
			return nil, nil, err
		}
		resp.Moved = moved
	} else {
		table, store := s.table.Clone(), s.store.Clone()
		assign, err := s.engine.Extend(in.vectors, table, store)
		if err != nil {
			return nil, nil, err
		}
		s.table, s.store = table, store
		for i, id := range in.ids {
			s.index[id] = len(s.items)
			s.items = append(s.items, item{FeatureVector: models.FeatureVector{ID: id, Values: in.vectors[i]}, cluster: assign[i], label: in.labels[i]})
		}
	}
	s.commitLocked()

	s.opts.logger.Debug("items added",
		zap.Int("items", len(in.ids)),
		zap.Bool("refit", req.Refit),
		zap.Int("moved", resp.Moved),
		zap.Ints("counts", s.table.Counts()),
	)
	resp.Assignments = s.results(in.ids)
	return resp, s.viewLocked(), nil
}

// refitLocked re-clusters retained and new items together and commits the result.
// It returns how many retained items changed cluster.
func (s *Session) refitLocked(in *prepared) (int, error) {
	all := make([][]float64, 0, len(s.items)+len(in.vectors))
	for _, it := range s.items {
		all = append(all, it.Values)
	}
	all = append(all, in.vectors...)

	fit, err := s.engine.Fit(all, s.table.Capacities())
	if err != nil {
		return 0, err
	}

	moved := 0
	items := slices.Clone(s.items)
	for i := range items {
		if items[i].cluster != fit.Assignments[i] {
			moved++
		}
		items[i].cluster = fit.Assignments[i]
	}
	base := len(items)
	for i, id := range in.ids {
		s.index[id] = base + i
		items = append(items, item{FeatureVector: models.FeatureVector{ID: id, Values: in.vectors[i]}, cluster: fit.Assignments[base+i], label: in.labels[i]})
	}
	s.items = items
	s.table = fit.Capacity
	s.store = fit.Centroids
	return moved, nil
}

// UpdateCapacities replaces every cluster capacity without moving any member.
func (s *Session) UpdateCapacities(ctx context.Context, caps []int) (resp *models.UpdateCapacitiesResponse, err error) {
	defer s.observe(metrics.OpUpdateCapacities, time.Now(), &err)

	resp, v, err := s.updateCapacities(caps)
	if err != nil {
		return nil, err
	}
	resp.Metrics = s.score(ctx, v)
	return resp, nil
}

func (s *Session) updateCapacities(caps []int) (*models.UpdateCapacitiesResponse, *view, error) {
	const op = "update capacities"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, nil, s.errInactive(op)
	}
	if err := s.table.Set(caps); err != nil {
		return nil, nil, err
	}
	s.commitLocked()

	s.opts.logger.Info("capacities updated", zap.Ints("capacities", s.table.Capacities()))
	return &models.UpdateCapacitiesResponse{
		Family:          s.family,
		Capacities:      s.table.Capacities(),
		CurrentCounts:   s.table.Counts(),
		AvailableSpaces: s.table.AvailableSpaces(),
	}, s.viewLocked(), nil
}

// view is a copy of the assignment taken under the lock for scoring outside it.
// Item vectors are shared; they are immutable once accepted.
type view struct {
	vectors [][]float64
	assign  []int
	labels  []*string
}

func (s *Session) viewLocked() *view {
	v := &view{
		vectors: make([][]float64, len(s.items)),
		assign:  make([]int, len(s.items)),
		labels:  make([]*string, len(s.items)),
	}
	for i, it := range s.items {
		v.vectors[i], v.assign[i], v.labels[i] = it.Values, it.cluster, it.label
	}
	return v
}

// score evaluates v and publishes the result. Scoring is best effort: a
// canceled context yields nil scores rather than failing a committed mutation.
func (s *Session) score(ctx context.Context, v *view) *models.MetricsSnapshot {
	snap, err := s.evaluator.Evaluate(ctx, v.vectors, v.assign, v.labels)
	if err != nil {
		s.opts.logger.Warn("failed to score session", zap.Error(err))
		return nil
	}
	s.opts.recorder.SetQuality(s.family, snap)
	return snap
}

// Status describes the session and scores its current assignment. An inactive
// session reports Active false and no error.
func (s *Session) Status(ctx context.Context) (st *models.Status, err error) {
	defer s.observe(metrics.OpStatus, time.Now(), &err)

	st, v := s.describe()
	if !st.Active {
		return st, nil
	}

	snap, err := s.evaluator.Evaluate(ctx, v.vectors, v.assign, v.labels)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate session %s: %w", s.family, err)
	}
	st.Metrics = snap
	s.opts.recorder.SetQuality(s.family, snap)
	return st, nil
}

func (s *Session) describe() (*models.Status, *view) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &models.Status{Family: s.family, Active: s.active}
	if !s.active {
		return st, nil
	}
	st.NumClusters = s.table.K()
	st.Dimension = s.dim
	st.Distance = s.opts.distance
	st.Capacities = s.table.Capacities()
	st.CurrentCounts = s.table.Counts()
	st.AvailableSpaces = s.table.AvailableSpaces()
	st.TotalItems = len(s.items)
	return st, s.viewLocked()
}

// Reset discards the model, the item registry and the ground-truth labels.
// Resetting an inactive session is a no-op.
func (s *Session) Reset(ctx context.Context) (err error) {
	defer s.observe(metrics.OpReset, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	s.clearLocked()
	s.opts.recorder.ForgetSession(s.family)
	if s.opts.onCommit != nil {
		s.opts.onCommit(s.family, nil)
	}
	s.opts.logger.Info("session reset")
	return nil
}

func (s *Session) clearLocked() {
	s.active = false
	s.dim = 0
	s.table = nil
	s.store = nil
	s.items = nil
	s.index = nil
}

// Snapshot returns the persisted form of the session, or nil when inactive.
func (s *Session) Snapshot() *models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *models.SessionSnapshot {
	if !s.active {
		return nil
	}
	snap := &models.SessionSnapshot{
		Family:     s.family,
		K:          s.table.K(),
		Dimension:  s.dim,
		Distance:   s.opts.distance,
		Capacities: s.table.Capacities(),
		Items:      make([]models.SnapshotItem, len(s.items)),
		UpdatedAt:  time.Now().UTC(),
	}
	for i, it := range s.items {
		snap.Items[i] = models.SnapshotItem{ID: it.ID, Values: it.Values, Cluster: it.cluster, Label: it.label}
	}
	return snap
}

// Restore replaces the session state with snap. Centroids are recomputed from the
// retained vectors. A snapshot that breaks a capacity, the dimension or ID
// uniqueness is rejected and the session is left unchanged. The commit hook is
// not called.
func (s *Session) Restore(snap *models.SessionSnapshot) (err error) {
	defer s.observe(metrics.OpRestore, time.Now(), &err)
	const op = "restore"

	if snap == nil || len(snap.Items) == 0 {
		return cluster.NewConfigurationError(op, "snapshot has no items")
	}
	if d := vector.Canonical(snap.Distance); d != s.opts.distance {
		return cluster.NewConfigurationError(op, fmt.Sprintf("snapshot distance %q does not match session distance %q", d, s.opts.distance))
	}
	if snap.K != len(snap.Capacities) {
		return cluster.NewConfigurationError(op, fmt.Sprintf("snapshot k is %d but it has %d capacities", snap.K, len(snap.Capacities)))
	}
	table, err := cluster.NewCapacityTable(snap.Capacities)
	if err != nil {
		return err
	}
	dim := snap.Dimension
	if dim <= 0 {
		dim = len(snap.Items[0].Values)
	}
	store := cluster.NewCentroidStore(table.K(), dim)
	items := make([]item, len(snap.Items))
	index := make(map[string]int, len(snap.Items))

	for i, si := range snap.Items {
		if fv := (models.FeatureVector{ID: si.ID, Values: si.Values}); fv.Dim() != dim {
			return &cluster.DimensionMismatchError{ItemID: fv.ID, Expected: dim, Actual: fv.Dim()}
		}
		if si.Cluster < 0 || si.Cluster >= table.K() {
			return cluster.NewConfigurationError(op, fmt.Sprintf("item %q has cluster %d outside [0, %d)", si.ID, si.Cluster, table.K()))
		}
		if _, dup := index[si.ID]; dup {
			return cluster.WrapConfigurationError(op, cluster.ErrDuplicateItem, fmt.Sprintf("item %q appears twice in the snapshot", si.ID))
		}
		if !table.Admit(si.Cluster) {
			return &cluster.CapacityExceededError{Cluster: si.Cluster, Requested: snap.Counts()[si.Cluster], Available: table.Get(si.Cluster)}
		}
		values := slices.Clone(si.Values)
		store.Add(si.Cluster, values)
		items[i] = item{FeatureVector: models.FeatureVector{ID: si.ID, Values: values}, cluster: si.Cluster, label: si.Label}
		index[si.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.dim = dim
	s.table = table
	s.store = store
	s.items = items
	s.index = index
	s.opts.recorder.SetOccupancy(s.family, table.Capacities(), table.Counts())
	s.opts.logger.Info("session restored", zap.Int("items", len(items)), zap.Int("k", table.K()))
	return nil
}

// commitLocked publishes the committed state to the recorder and the commit hook.
func (s *Session) commitLocked() {
	s.opts.recorder.SetOccupancy(s.family, s.table.Capacities(), s.table.Counts())
	if s.opts.onCommit != nil {
		s.opts.onCommit(s.family, s.snapshotLocked())
	}
}

func (s *Session) results(ids []string) []models.AssignmentResult {
	out := make([]models.AssignmentResult, len(ids))
	for i, id := range ids {
		c := s.items[s.index[id]].cluster
		out[i] = models.AssignmentResult{ItemID: id, Cluster: c, Centroid: s.store.Snapshot(c)}
	}
	return out
}

func (s *Session) errInactive(op string) error {
	return cluster.WrapConfigurationError(op, cluster.ErrNoActiveModel,
		fmt.Sprintf("no active model for %q; initialize it first", s.family))
}

func (s *Session) observe(op string, start time.Time, err *error) {
	s.opts.recorder.ObserveOperation(s.family, op, *err, time.Since(start))
	if *err != nil {
		s.opts.logger.Debug("operation rejected", zap.String("op", op), zap.Error(*err))
	}
}
