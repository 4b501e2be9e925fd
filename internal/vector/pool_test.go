package vector

import (
	"math"
	"testing"
)

func TestMeanPool(t *testing.T) {
	got, err := MeanPool([][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("MeanPool = %v", got)
	}
	if _, err := MeanPool(nil); err == nil {
		t.Error("expected error for empty list")
	}
	if _, err := MeanPool([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged descriptors")
	}
}

func TestNormalizeL2(t *testing.T) {
	in := []float64{3, 4}
	got := NormalizeL2(in)
	if math.Abs(got[0]-0.6) > 1e-12 || math.Abs(got[1]-0.8) > 1e-12 {
		t.Errorf("NormalizeL2 = %v", got)
	}
	if in[0] != 3 {
		t.Error("input must not be modified")
	}
	zero := NormalizeL2([]float64{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite([]float64{1, -2, 0}) {
		t.Error("finite vector reported non-finite")
	}
	if IsFinite([]float64{1, math.NaN()}) || IsFinite([]float64{math.Inf(1)}) {
		t.Error("non-finite vector reported finite")
	}
}
