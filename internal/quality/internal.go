package quality

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Dunn returns the minimum distance between points of different clusters divided
// by the largest distance between two points of the same cluster.
func (e *Evaluator) Dunn(ctx context.Context, vectors [][]float64, assign []int) (float64, error) {
	if nonEmpty(assign) < 2 {
		return 0, unavailable("fewer than 2 non-empty clusters")
	}

	n := len(vectors)
	minInter := make([]float64, n)
	maxIntra := make([]float64, n)
	err := e.forEachRow(ctx, n, func(i int) {
		lo, hi := math.Inf(1), 0.0
		for j := i + 1; j < n; j++ {
			d := e.distance(vectors[i], vectors[j])
			if assign[i] == assign[j] {
				hi = math.Max(hi, d)
			} else {
				lo = math.Min(lo, d)
			}
		}
		minInter[i], maxIntra[i] = lo, hi
	})
	if err != nil {
		return 0, err
	}

	lo, hi := math.Inf(1), 0.0
	for i := range n {
		lo = math.Min(lo, minInter[i])
		hi = math.Max(hi, maxIntra[i])
	}
	if hi == 0 {
		return 0, unavailable("every cluster has zero diameter")
	}
	return lo / hi, nil
}

// Silhouette returns the mean silhouette over all items. Items alone in their
// cluster score 0.
func (e *Evaluator) Silhouette(ctx context.Context, vectors [][]float64, assign []int) (float64, error) {
	if nonEmpty(assign) < 2 {
		return 0, unavailable("fewer than 2 non-empty clusters")
	}

	k := 0
	for _, c := range assign {
		k = max(k, c+1)
	}
	sizes := make([]int, k)
	for _, c := range assign {
		sizes[c]++
	}

	n := len(vectors)
	scores := make([]float64, n)
	err := e.forEachRow(ctx, n, func(i int) {
		own := assign[i]
		if sizes[own] < 2 {
			return
		}
		sums := make([]float64, k)
		for j := range n {
			if j != i {
				sums[assign[j]] += e.distance(vectors[i], vectors[j])
			}
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := range k {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if m := math.Max(a, b); m > 0 {
			scores[i] = (b - a) / m
		}
	})
	if err != nil {
		return 0, err
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	return total / float64(n), nil
}

// forEachRow calls fn for every row index, spreading blocks of rows over at most
// e.workers goroutines. fn must only write to per-row state.
func (e *Evaluator) forEachRow(ctx context.Context, n int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for start := 0; start < n; start += rowsPerTask {
		end := min(start+rowsPerTask, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}

func nonEmpty(assign []int) int {
	seen := make(map[int]struct{})
	for _, c := range assign {
		seen[c] = struct{}{}
	}
	return len(seen)
}
