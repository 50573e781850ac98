package memory

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex scans a DocumentStore's chunk embeddings.
type VectorIndex struct {
	store      *DocumentStore
	dims       int
	similarity func(a, b []float32) float64
}

// NewVectorIndex creates a vector index over store using the given
// similarity function and dimensionality.
func NewVectorIndex(store *DocumentStore, dims int, similarity domain.Similarity) *VectorIndex {
	return &VectorIndex{
		store:      store,
		dims:       dims,
		similarity: vecmath.Func(similarity),
	}
}

// Search returns the k chunks in spaceID most similar to query.
func (v *VectorIndex) Search(_ context.Context, spaceID string, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}

	var scored []vecmath.Scored
	v.store.eachChunk(spaceID, func(chunk *domain.Chunk) {
		if len(chunk.Embedding) != v.dims {
			return
		}
		scored = append(scored, vecmath.Scored{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Similarity: v.similarity(query, chunk.Embedding),
		})
	})

	top := vecmath.TopK(scored, k)
	hits := make([]driven.VectorHit, len(top))
	for i, s := range top {
		hits[i] = driven.VectorHit{ChunkID: s.ChunkID, DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	return hits, nil
}
