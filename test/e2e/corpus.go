// Package e2e provides end-to-end tests over the HTTP API, persistence and the batch inbox.
package e2e

import (
	"fmt"
	"math/rand"

	"github.com/hyperjump/capcluster/internal/models"
)

// Corpus is a labelled set of descriptor vectors drawn from well-separated blobs.
type Corpus struct {
	Items    []models.ItemInput
	Classes  int
	PerClass int
	Dim      int
}

// BuildCorpus returns classes*perClass items of dimension dim. Items of class c are
// drawn around a centre at 20*c on every axis, so classes never overlap. The same
// seed always yields the same corpus.
func BuildCorpus(classes, perClass, dim int, seed int64) *Corpus {
	rng := rand.New(rand.NewSource(seed))
	items := make([]models.ItemInput, 0, classes*perClass)
	for i := 0; i < perClass; i++ {
		for c := 0; c < classes; c++ {
			v := make([]float64, dim)
			for j := range v {
				v[j] = 20*float64(c) + rng.NormFloat64()
			}
			items = append(items, models.ItemInput{
				ID:     fmt.Sprintf("img-%d-%03d", c, i),
				Values: v,
				Label:  fmt.Sprintf("class-%d", c),
			})
		}
	}
	return &Corpus{Items: items, Classes: classes, PerClass: perClass, Dim: dim}
}

// Split returns the first n items and the rest.
func (c *Corpus) Split(n int) ([]models.ItemInput, []models.ItemInput) {
	if n > len(c.Items) {
		n = len(c.Items)
	}
	return c.Items[:n], c.Items[n:]
}

// WithDescriptors returns a copy of items where every vector is replaced by local
// descriptors whose mean is the original vector.
func WithDescriptors(items []models.ItemInput) []models.ItemInput {
	out := make([]models.ItemInput, len(items))
	for i, it := range items {
		lo := make([]float64, len(it.Values))
		hi := make([]float64, len(it.Values))
		for j, x := range it.Values {
			lo[j] = x - 1
			hi[j] = x + 1
		}
		out[i] = models.ItemInput{ID: it.ID, Descriptors: [][]float64{lo, hi}, Label: it.Label}
	}
	return out
}
