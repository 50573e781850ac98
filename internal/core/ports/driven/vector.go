package driven

import "context"

// VectorIndex provides semantic similarity search operations.
// The similarity function (cosine or inner product) is fixed when the
// index is constructed.
type VectorIndex interface {
	// Search finds the k nearest chunks to the query vector within one
	// search space.
	Search(ctx context.Context, spaceID string, query []float32, k int) ([]VectorHit, error)
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's parent document.
	DocumentID string

	// Similarity is the similarity score (higher is closer).
	Similarity float64
}
