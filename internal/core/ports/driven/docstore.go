package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// DocumentStore persists search spaces, documents and chunks.
// Backed by SQLite, or process memory for ephemeral runs.
type DocumentStore interface {
	// CreateSpace registers a new search space.
	CreateSpace(ctx context.Context, space *domain.SearchSpace) error

	// GetSpace retrieves a search space by ID.
	GetSpace(ctx context.Context, id string) (*domain.SearchSpace, error)

	// ListSpaces returns all search spaces, oldest first.
	ListSpaces(ctx context.Context) ([]domain.SearchSpace, error)

	// DeleteSpace removes a space with all of its documents and chunks.
	DeleteSpace(ctx context.Context, id string) error

	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns the documents in a search space.
	ListDocuments(ctx context.Context, spaceID string) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks atomically swaps a document's chunk set. Readers see
	// either the old set or the new one, never a mix.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// CountChunks returns the number of chunks in a search space.
	CountChunks(ctx context.Context, spaceID string) (int, error)
}
