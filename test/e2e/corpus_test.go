package e2e

import (
	"reflect"
	"testing"

	"github.com/hyperjump/capcluster/internal/vector"
)

func TestBuildCorpus(t *testing.T) {
	c := BuildCorpus(3, 10, 4, 7)
	if len(c.Items) != 30 {
		t.Fatalf("items: got %d, want 30", len(c.Items))
	}
	seen := make(map[string]bool)
	perLabel := make(map[string]int)
	for _, it := range c.Items {
		if seen[it.ID] {
			t.Errorf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
		perLabel[it.Label]++
		if len(it.Values) != 4 {
			t.Errorf("%s: dim %d", it.ID, len(it.Values))
		}
	}
	if len(perLabel) != 3 {
		t.Errorf("labels: %v", perLabel)
	}
	for label, n := range perLabel {
		if n != 10 {
			t.Errorf("label %s has %d items", label, n)
		}
	}
	if !reflect.DeepEqual(c, BuildCorpus(3, 10, 4, 7)) {
		t.Error("same seed should give the same corpus")
	}
}

func TestWithDescriptorsPreservesMean(t *testing.T) {
	c := BuildCorpus(2, 2, 3, 1)
	for i, it := range WithDescriptors(c.Items) {
		if !it.HasDescriptors() {
			t.Fatalf("%s has no descriptors", it.ID)
		}
		mean, err := vector.MeanPool(it.Descriptors)
		if err != nil {
			t.Fatal(err)
		}
		for j := range mean {
			if d := mean[j] - c.Items[i].Values[j]; d > 1e-9 || d < -1e-9 {
				t.Errorf("%s: mean %v, want %v", it.ID, mean, c.Items[i].Values)
				break
			}
		}
	}
}

func TestSplit(t *testing.T) {
	c := BuildCorpus(2, 5, 2, 1)
	head, tail := c.Split(4)
	if len(head) != 4 || len(tail) != 6 {
		t.Errorf("split: %d/%d", len(head), len(tail))
	}
	head, tail = c.Split(100)
	if len(head) != 10 || len(tail) != 0 {
		t.Errorf("oversized split: %d/%d", len(head), len(tail))
	}
}
