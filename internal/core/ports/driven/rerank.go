package driven

import "context"

// Reranker scores (query, document) pairs with a higher-precision
// relevance model. Ordering, truncation and failure passthrough are the
// caller's concern.
type Reranker interface {
	// Score returns one relevance score per document, aligned by index.
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	// Name identifies the provider in logs and tool call records.
	Name() string
}
