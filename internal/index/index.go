// Package index implements a flat in-memory inner-product index. Vectors are
// L2-normalized on insert, so the inner product is cosine similarity. The
// index is built once and never mutated afterwards.
package index

import (
	"errors"
	"math"
	"sort"
)

// Flat is a brute-force inner-product index over normalized vectors.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimensionality.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Flat{dim: dim}, nil
}

// Dim returns the vector dimensionality the index was built for.
func (f *Flat) Dim() int { return f.dim }

// Size returns the number of indexed vectors.
func (f *Flat) Size() int { return len(f.vectors) }

// Add normalizes the vectors in place and appends them in order, so vector i
// of the batch lands at position Size()+i.
func (f *Flat) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dim {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, v := range vectors {
		Normalize(v)
		f.vectors = append(f.vectors, v)
	}
	return nil
}

// Search returns the ids and scores of the k nearest vectors by inner
// product, best first. Fewer than k results come back when the index is
// smaller than k. The query is expected to be normalized already.
func (f *Flat) Search(query []float32, k int) (scores []float32, ids []int) {
	if k <= 0 || len(query) != f.dim {
		return nil, nil
	}

	all := make([]int, len(f.vectors))
	dots := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		all[i] = i
		dots[i] = dot(query, v)
	}

	sort.Slice(all, func(a, b int) bool { return dots[all[a]] > dots[all[b]] })

	if k > len(all) {
		k = len(all)
	}
	ids = all[:k]
	scores = make([]float32, k)
	for i, id := range ids {
		scores[i] = dots[id]
	}
	return scores, ids
}

// Normalize scales v to unit length in place. The zero vector is left alone.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
