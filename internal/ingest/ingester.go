package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/fileid"
	"github.com/hyperjump/capcluster/internal/models"
)

// Target applies decoded batches; *session.Manager implements it.
type Target interface {
	Initialize(ctx context.Context, family string, req models.InitializeRequest) (*models.InitializeResponse, error)
	AddItems(ctx context.Context, family string, req models.AddItemsRequest) (*models.AddItemsResponse, error)
}

// ModelNotifier reports when a family's model is discarded or replaced;
// *session.Manager implements it.
type ModelNotifier interface {
	OnModelReplaced(fn func(family string))
}

// appliedBatch records a batch content applied to a family.
type appliedBatch struct {
	family string
	at     time.Time
}

// Ingester applies batch files to a Target, skipping content it already applied
// to the same family's current model.
type Ingester struct {
	target  Target
	logger  *zap.Logger
	applied *xsync.Map[string, appliedBatch]
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// New returns an Ingester that applies batches to target. When target is a
// ModelNotifier, the record of applied batches for a family is dropped whenever
// its model is reset or re-initialized.
func New(target Target, opts ...Option) *Ingester {
	in := &Ingester{
		target:  target,
		logger:  zap.NewNop(),
		applied: xsync.NewMap[string, appliedBatch](),
	}
	for _, opt := range opts {
		opt(in)
	}
	if n, ok := target.(ModelNotifier); ok {
		n.OnModelReplaced(in.Forget)
	}
	return in
}

// ApplyFile reads, decodes and applies the batch at path. It reports false with
// no error when identical content was already applied to the family's current
// model. When the batch names no family, the name of the file's parent directory
// is used.
func (in *Ingester) ApplyFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read batch %s: %w", path, err)
	}
	b, err := DecodeBatch(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if b.Family == "" {
		b.Family = filepath.Base(filepath.Dir(path))
	}

	key := b.Family + "/" + fileid.ContentID(data)
	if _, done := in.applied.Load(key); done {
		in.logger.Debug("batch already applied", zap.String("path", path), zap.String("key", key))
		return false, nil
	}
	if err := in.Apply(ctx, b); err != nil {
		return false, fmt.Errorf("failed to apply batch %s: %w", path, err)
	}
	in.applied.Store(key, appliedBatch{family: b.Family, at: time.Now()})
	return true, nil
}

// Apply runs b against the target.
func (in *Ingester) Apply(ctx context.Context, b *Batch) error {
	switch b.Op {
	case OpInitialize:
		resp, err := in.target.Initialize(ctx, b.Family, b.InitializeRequest())
		if err != nil {
			return err
		}
		in.logger.Info("batch initialized session",
			zap.String("family", b.Family),
			zap.Int("items", len(resp.Assignments)),
			zap.Int("iterations", resp.Iterations),
		)
	case OpAdd:
		resp, err := in.target.AddItems(ctx, b.Family, b.AddItemsRequest())
		if err != nil {
			return err
		}
		in.logger.Info("batch added items",
			zap.String("family", b.Family),
			zap.Int("items", len(resp.Assignments)),
			zap.Bool("refit", resp.Refit),
		)
	default:
		return fmt.Errorf("invalid batch op %q", b.Op)
	}
	return nil
}

// HandleFile applies path and logs failures; it is the inbox watcher handler.
func (in *Ingester) HandleFile(ctx context.Context, path string) {
	if _, err := in.ApplyFile(ctx, path); err != nil {
		in.logger.Warn("batch rejected", zap.String("path", path), zap.String("path_id", fileid.PathID(path)), zap.Error(err))
	}
}

// Applied returns how many distinct batch contents are recorded as applied.
func (in *Ingester) Applied() int {
	return in.applied.Size()
}

// Forget drops the applied-batch record of family so the same files can be
// applied again to a fresh model.
func (in *Ingester) Forget(family string) {
	in.applied.Range(func(key string, b appliedBatch) bool {
		if b.family == family {
			in.applied.Delete(key)
		}
		return true
	})
}
