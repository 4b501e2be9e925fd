package quality

import "math"

// eps guards the AMI denominator against division by zero.
const eps = 2.220446049250313e-16

// contingency is the class-by-cluster count table of two partitions.
type contingency struct {
	n     int
	cells [][]int
	rows  []int // class sizes
	cols  []int // cluster sizes
}

func newContingency(truth []string, pred []int) *contingency {
	classIdx := make(map[string]int)
	clusterIdx := make(map[int]int)
	for i := range truth {
		if _, ok := classIdx[truth[i]]; !ok {
			classIdx[truth[i]] = len(classIdx)
		}
		if _, ok := clusterIdx[pred[i]]; !ok {
			clusterIdx[pred[i]] = len(clusterIdx)
		}
	}

	ct := &contingency{
		n:     len(truth),
		cells: make([][]int, len(classIdx)),
		rows:  make([]int, len(classIdx)),
		cols:  make([]int, len(clusterIdx)),
	}
	for r := range ct.cells {
		ct.cells[r] = make([]int, len(clusterIdx))
	}
	for i := range truth {
		r, c := classIdx[truth[i]], clusterIdx[pred[i]]
		ct.cells[r][c]++
		ct.rows[r]++
		ct.cols[c]++
	}
	return ct
}

// trivial reports whether both partitions put everything in one group.
func (ct *contingency) trivial() bool {
	return len(ct.rows) == 1 && len(ct.cols) == 1
}

func entropy(sizes []int, n int) float64 {
	var h float64
	for _, s := range sizes {
		if s > 0 {
			p := float64(s) / float64(n)
			h -= p * math.Log(p)
		}
	}
	return h
}

func (ct *contingency) mutualInfo() float64 {
	n := float64(ct.n)
	var mi float64
	for r, row := range ct.cells {
		for c, nij := range row {
			if nij == 0 {
				continue
			}
			v := float64(nij)
			mi += v / n * (math.Log(n*v) - math.Log(float64(ct.rows[r])*float64(ct.cols[c])))
		}
	}
	return math.Max(mi, 0)
}

// nmi is the mutual information normalized by the arithmetic mean of the entropies.
func (ct *contingency) nmi() float64 {
	if ct.trivial() {
		return 1
	}
	mi := ct.mutualInfo()
	if mi == 0 {
		return 0
	}
	norm := (entropy(ct.rows, ct.n) + entropy(ct.cols, ct.n)) / 2
	return mi / math.Max(norm, eps)
}

func comb2(x int) float64 {
	return float64(x) * float64(x-1) / 2
}

// ari is the adjusted Rand index in its pair-counting form.
func (ct *contingency) ari() float64 {
	var index, sumRows, sumCols float64
	for _, row := range ct.cells {
		for _, nij := range row {
			index += comb2(nij)
		}
	}
	for _, a := range ct.rows {
		sumRows += comb2(a)
	}
	for _, b := range ct.cols {
		sumCols += comb2(b)
	}
	expected := sumRows * sumCols / comb2(ct.n)
	maxIndex := (sumRows + sumCols) / 2
	if maxIndex == expected {
		return 1
	}
	return (index - expected) / (maxIndex - expected)
}

// ami is the mutual information adjusted for chance, normalized by the arithmetic
// mean of the entropies.
func (ct *contingency) ami() float64 {
	if ct.trivial() {
		return 1
	}
	mi := ct.mutualInfo()
	emi := ct.expectedMutualInfo()
	denom := (entropy(ct.rows, ct.n)+entropy(ct.cols, ct.n))/2 - emi
	if denom < 0 {
		denom = math.Min(denom, -eps)
	} else {
		denom = math.Max(denom, eps)
	}
	return (mi - emi) / denom
}

// expectedMutualInfo is the exact expected mutual information of two random
// partitions with the same group sizes, under the hypergeometric model.
func (ct *contingency) expectedMutualInfo() float64 {
	n := ct.n
	nf := float64(n)
	lg := func(x int) float64 {
		v, _ := math.Lgamma(float64(x))
		return v
	}
	lgN1 := lg(n + 1)

	var emi float64
	for _, a := range ct.rows {
		for _, b := range ct.cols {
			base := lg(a+1) + lg(b+1) + lg(n-a+1) + lg(n-b+1) - lgN1
			start := max(1, a+b-n)
			for nij := start; nij <= min(a, b); nij++ {
				v := float64(nij)
				term := v / nf * (math.Log(nf*v) - math.Log(float64(a)*float64(b)))
				gln := base - lg(nij+1) - lg(a-nij+1) - lg(b-nij+1) - lg(n-a-b+nij+1)
				emi += term * math.Exp(gln)
			}
		}
	}
	return emi
}
