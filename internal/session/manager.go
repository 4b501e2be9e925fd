package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/models"
)

// ErrUnknownFamily is returned for a family outside the configured set.
var ErrUnknownFamily = errors.New("unknown descriptor family")

// SnapshotStore persists session snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.SessionSnapshot) error
	DeleteSnapshot(ctx context.Context, family string) error
	LoadSnapshots(ctx context.Context) ([]*models.SessionSnapshot, error)
}

// Summary is a one-line view of a session, as listed by Manager.List.
type Summary struct {
	Family     string `json:"family"`
	Active     bool   `json:"active"`
	TotalItems int    `json:"total_items"`
	K          int    `json:"k,omitempty"`
}

// Manager holds one independent session per family. Sessions are created on
// first use; operations on different families never contend.
type Manager struct {
	sessions *xsync.Map[string, *Session]
	families []string
	store    SnapshotStore
	opts     []Option
	logger   *zap.Logger

	mu       sync.Mutex
	replaced []func(family string)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFamilies restricts the manager to the given families. An empty list allows any.
func WithFamilies(families ...string) ManagerOption {
	return func(m *Manager) { m.families = slices.Clone(families) }
}

// WithStore persists every committed mutation to store.
func WithStore(store SnapshotStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithSessionOptions sets the options applied to every session.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager. The session options are validated up front so
// an invalid distance fails here rather than on first use.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		sessions: xsync.NewMap[string, *Session](),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if _, err := m.newSession("probe"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) newSession(family string, extra ...Option) (*Session, error) {
	opts := append([]Option{WithLogger(m.logger)}, m.opts...)
	if m.store != nil {
		opts = append(opts, WithCommitHook(m.persist))
	}
	return New(family, append(opts, extra...)...)
}

// Session returns the session for family, creating an inactive one if needed.
func (m *Manager) Session(family string) (*Session, error) {
	if err := m.checkFamily(family); err != nil {
		return nil, err
	}
	if s, ok := m.sessions.Load(family); ok {
		return s, nil
	}
	s, err := m.newSession(family)
	if err != nil {
		return nil, err
	}
	actual, _ := m.sessions.LoadOrStore(family, s)
	return actual, nil
}

func (m *Manager) checkFamily(family string) error {
	if family == "" {
		return fmt.Errorf("%w: empty family", ErrUnknownFamily)
	}
	if len(m.families) > 0 && !slices.Contains(m.families, family) {
		return fmt.Errorf("%w: %q (known: %v)", ErrUnknownFamily, family, m.families)
	}
	return nil
}

// Families returns the configured families, or nil when any family is allowed.
func (m *Manager) Families() []string { return slices.Clone(m.families) }

// Initialize runs a cold-start fit for family.
func (m *Manager) Initialize(ctx context.Context, family string, req models.InitializeRequest) (*models.InitializeResponse, error) {
	s, err := m.Session(family)
	if err != nil {
		return nil, err
	}
	resp, err := s.Initialize(ctx, req)
	if err != nil {
		return nil, err
	}
	m.notifyReplaced(family)
	return resp, nil
}

// AddItems inserts items into family's active session.
func (m *Manager) AddItems(ctx context.Context, family string, req models.AddItemsRequest) (*models.AddItemsResponse, error) {
	s, err := m.Session(family)
	if err != nil {
		return nil, err
	}
	return s.AddItems(ctx, req)
}

// UpdateCapacities replaces the capacities of family's active session.
func (m *Manager) UpdateCapacities(ctx context.Context, family string, caps []int) (*models.UpdateCapacitiesResponse, error) {
	s, err := m.Session(family)
	if err != nil {
		return nil, err
	}
	return s.UpdateCapacities(ctx, caps)
}

// Status describes family's session.
func (m *Manager) Status(ctx context.Context, family string) (*models.Status, error) {
	s, err := m.Session(family)
	if err != nil {
		return nil, err
	}
	return s.Status(ctx)
}

// Reset discards family's model.
func (m *Manager) Reset(ctx context.Context, family string) error {
	s, err := m.Session(family)
	if err != nil {
		return err
	}
	if err := s.Reset(ctx); err != nil {
		return err
	}
	m.notifyReplaced(family)
	return nil
}

// OnModelReplaced registers fn to run after a family's model is discarded by
// Reset or replaced by a successful Initialize.
func (m *Manager) OnModelReplaced(fn func(family string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = append(m.replaced, fn)
}

func (m *Manager) notifyReplaced(family string) {
	m.mu.Lock()
	fns := slices.Clone(m.replaced)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(family)
	}
}

// List summarizes every known session, sorted by family. Configured families
// without a session are listed as inactive.
func (m *Manager) List() []Summary {
	byFamily := make(map[string]Summary)
	for _, f := range m.families {
		byFamily[f] = Summary{Family: f}
	}
	m.sessions.Range(func(family string, s *Session) bool {
		sum := Summary{Family: family}
		if snap := s.Snapshot(); snap != nil {
			sum.Active = true
			sum.TotalItems = len(snap.Items)
			sum.K = snap.K
		}
		byFamily[family] = sum
		return true
	})

	out := make([]Summary, 0, len(byFamily))
	for _, sum := range byFamily {
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		switch {
		case a.Family < b.Family:
			return -1
		case a.Family > b.Family:
			return 1
		}
		return 0
	})
	return out
}

// Restore rebuilds sessions from the store. A snapshot that cannot be restored is
// logged and skipped. It returns the number of sessions restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	snaps, err := m.store.LoadSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshots: %w", err)
	}

	restored := 0
	for _, snap := range snaps {
		if err := m.restoreOne(snap); err != nil {
			m.logger.Warn("skipping snapshot", zap.String("family", snap.Family), zap.Error(err))
			continue
		}
		restored++
	}
	m.logger.Info("sessions restored", zap.Int("restored", restored), zap.Int("snapshots", len(snaps)))
	return restored, nil
}

func (m *Manager) restoreOne(snap *models.SessionSnapshot) error {
	if err := m.checkFamily(snap.Family); err != nil {
		return err
	}
	s, err := m.newSession(snap.Family, WithDistance(snap.Distance))
	if err != nil {
		return err
	}
	if err := s.Restore(snap); err != nil {
		return err
	}
	m.sessions.Store(snap.Family, s)
	return nil
}

// persist writes a committed snapshot, or deletes it after a reset. Failures are
// logged and never undo the in-memory commit.
func (m *Manager) persist(family string, snap *models.SessionSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if snap == nil {
		err = m.store.DeleteSnapshot(ctx, family)
	} else {
		err = m.store.SaveSnapshot(ctx, snap)
	}
	if err != nil {
		m.logger.Warn("failed to persist session", zap.String("family", family), zap.Error(err))
	}
}
