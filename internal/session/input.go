package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperjump/capcluster/internal/cluster"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/vector"
)

// prepared is a validated batch ready for the engine.
type prepared struct {
	ids     []string
	vectors [][]float64
	labels  []*string
}

// prepareItems validates a batch and turns it into vectors. dim is the session
// dimension, or 0 when it is fixed by this batch. known holds IDs already in the
// session. Descriptors are mean-pooled, missing IDs are generated, and vectors
// are copied (and normalized when enabled) so callers cannot mutate them later.
func prepareItems(op string, items []models.ItemInput, labels map[string]string, dim int, known map[string]int, normalize bool) (*prepared, error) {
	if len(items) == 0 {
		return nil, cluster.NewConfigurationError(op, "no items supplied")
	}

	p := &prepared{
		ids:     make([]string, len(items)),
		vectors: make([][]float64, len(items)),
		labels:  make([]*string, len(items)),
	}
	seen := make(map[string]struct{}, len(items))
	var emptyDescriptors []int

	for i, in := range items {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, cluster.WrapConfigurationError(op, cluster.ErrDuplicateItem, fmt.Sprintf("item %q appears twice in the batch", id))
		}
		if _, dup := known[id]; dup {
			return nil, cluster.WrapConfigurationError(op, cluster.ErrDuplicateItem, fmt.Sprintf("item %q is already assigned", id))
		}
		seen[id] = struct{}{}
		p.ids[i] = id

		var values []float64
		switch {
		case in.HasDescriptors() && len(in.Descriptors) == 0:
			emptyDescriptors = append(emptyDescriptors, i)
		case in.HasDescriptors():
			pooled, err := vector.MeanPool(in.Descriptors)
			if err != nil {
				return nil, cluster.NewConfigurationError(op, fmt.Sprintf("item %q: %v", id, err))
			}
			values = pooled
		default:
			if len(in.Values) == 0 {
				return nil, cluster.NewConfigurationError(op, fmt.Sprintf("item %q has no values", id))
			}
			values = append([]float64(nil), in.Values...)
		}

		if values != nil {
			if !vector.IsFinite(values) {
				return nil, cluster.NewConfigurationError(op, fmt.Sprintf("item %q contains NaN or infinite values", id))
			}
			if dim == 0 {
				dim = len(values)
			}
			if len(values) != dim {
				return nil, &cluster.DimensionMismatchError{ItemID: id, Expected: dim, Actual: len(values)}
			}
			if normalize {
				values = vector.NormalizeL2(values)
			}
		}
		p.vectors[i] = values

		if l, ok := models.LabelFor(in, labels); ok {
			p.labels[i] = &l
		}
	}

	if len(emptyDescriptors) > 0 {
		if dim == 0 {
			return nil, cluster.NewConfigurationError(op, "cannot infer dimension: every item has an empty descriptor list")
		}
		for _, i := range emptyDescriptors {
			p.vectors[i] = make([]float64, dim)
		}
	}
	return p, nil
}
