package driven

import "context"

// EmbeddingService turns text into dense vectors for the VectorIndex. A nil
// EmbeddingService disables the dense side of hybrid search and chunks are
// stored without embeddings.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns exactly one vector per input, in input order.
	// Adapters split oversized batches themselves.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector this service returns. It
	// has to equal the configured index dimensionality.
	Dimensions() int

	ModelName() string

	// Ping reports whether the provider can serve the configured model.
	Ping(ctx context.Context) error

	Close() error
}
