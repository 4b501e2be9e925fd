package quality

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separated() ([][]float64, []int) {
	return [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}, []int{0, 0, 1, 1}
}

func TestDunn(t *testing.T) {
	e := NewEvaluator(nil)
	vecs, assign := separated()

	d, err := e.Dunn(context.Background(), vecs, assign)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, d, 1e-12)
}

func TestDunn_Unavailable(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := context.Background()

	_, err := e.Dunn(ctx, [][]float64{{0}, {1}}, []int{0, 0})
	assert.ErrorIs(t, err, ErrMetricUnavailable)

	_, err = e.Dunn(ctx, [][]float64{{0, 0}, {3, 4}}, []int{0, 1})
	assert.ErrorIs(t, err, ErrMetricUnavailable, "zero diameter")
}

func TestSilhouette(t *testing.T) {
	e := NewEvaluator(nil)
	vecs, assign := separated()

	s, err := e.Silhouette(context.Background(), vecs, assign)
	require.NoError(t, err)
	assert.InDelta(t, 0.900249, s, 1e-5)
}

func TestSilhouette_SingletonScoresZero(t *testing.T) {
	e := NewEvaluator(nil)
	vecs := [][]float64{{0, 0}, {1, 0}, {2, 0}}

	s, err := e.Silhouette(context.Background(), vecs, []int{0, 1, 1})
	require.NoError(t, err)
	// item 0 is a singleton (0), item 1 has a == b (0), item 2 scores 0.5.
	assert.InDelta(t, 0.5/3, s, 1e-12)
}

func TestSilhouette_Unavailable(t *testing.T) {
	_, err := NewEvaluator(nil).Silhouette(context.Background(), [][]float64{{0}, {1}}, []int{2, 2})
	assert.ErrorIs(t, err, ErrMetricUnavailable)
}

func TestInternalMetrics_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	e := NewEvaluator(nil, WithWorkers(2))
	for trial := 0; trial < 10; trial++ {
		n := 150 + rng.Intn(100)
		k := 2 + rng.Intn(5)
		vecs := make([][]float64, n)
		assign := make([]int, n)
		for i := range vecs {
			vecs[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
			assign[i] = i % k
		}

		s, err := e.Silhouette(context.Background(), vecs, assign)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)

		d, err := e.Dunn(context.Background(), vecs, assign)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, 0.0)
	}
}

func TestInternalMetrics_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	vecs := make([][]float64, 300)
	assign := make([]int, len(vecs))
	for i := range vecs {
		vecs[i] = []float64{rng.Float64(), rng.Float64()}
		assign[i] = rng.Intn(4)
	}
	ctx := context.Background()

	serial := NewEvaluator(nil, WithWorkers(1))
	parallel := NewEvaluator(nil, WithWorkers(8))

	s1, err := serial.Silhouette(ctx, vecs, assign)
	require.NoError(t, err)
	s2, err := parallel.Silhouette(ctx, vecs, assign)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	d1, err := serial.Dunn(ctx, vecs, assign)
	require.NoError(t, err)
	d2, err := parallel.Dunn(ctx, vecs, assign)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestInternalMetrics_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vecs, assign := separated()

	_, err := NewEvaluator(nil).Silhouette(ctx, vecs, assign)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrMetricUnavailable))
}
