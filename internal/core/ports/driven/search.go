package driven

import (
	"context"
)

// KeywordIndex provides sparse full-text retrieval.
// Backed by SQLite FTS5 for BM25 keyword search.
type KeywordIndex interface {
	// Search performs a keyword search restricted to one search space and
	// returns matching chunk IDs, best first.
	Search(ctx context.Context, spaceID, query string, limit int) ([]SearchHit, error)
}

// SearchHit represents a search result from the engine.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's parent document.
	DocumentID string

	// Score is the relevance score (higher is better).
	Score float64
}
