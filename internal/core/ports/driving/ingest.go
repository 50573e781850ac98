package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// UpsertRequest replaces the chunk set of one document.
type UpsertRequest struct {
	DocumentID    string
	SearchSpaceID string

	// Texts holds the chunk contents in document order.
	Texts []string

	// Embeddings is either empty (sparse-only chunks) or aligned with Texts.
	Embeddings [][]float32

	// Spans is optional; when set it must be aligned with Texts.
	Spans []domain.TokenSpan
}

// IngestResult summarises one ingested document.
type IngestResult struct {
	DocumentID string
	Chunks     int
	Embedded   bool
}

// IngestService is the boundary through which ingestion collaborators
// write into the chunk store.
type IngestService interface {
	// UpsertChunks atomically replaces a document's chunks. Visibility is
	// all-or-nothing per document.
	UpsertChunks(ctx context.Context, req UpsertRequest) error

	// IngestDocument saves a document, splits content into chunks, embeds
	// them when an embedding provider is configured, and upserts them.
	IngestDocument(ctx context.Context, doc *domain.Document, content string) (*IngestResult, error)
}
