// Package vecmath holds the dense similarity functions shared by the
// storage backends. Vectors are compared by exhaustive scan.
package vecmath

import (
	"math"
	"sort"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Dot returns the inner product of a and b, or 0 when the lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Func returns the similarity function for kind. Unknown kinds use cosine.
func Func(kind domain.Similarity) func(a, b []float32) float64 {
	if kind == domain.SimilarityDot {
		return Dot
	}
	return Cosine
}

// Scored is one candidate vector's similarity to a query.
type Scored struct {
	ChunkID    string
	DocumentID string
	Similarity float64
}

// TopK sorts hits by similarity, best first, and keeps at most k. Ties
// break on chunk ID so equal inputs always give the same order.
func TopK(hits []Scored, k int) []Scored {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
