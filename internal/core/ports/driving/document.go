package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// DocumentService manages documents within search spaces.
type DocumentService interface {
	// ListBySpace returns all documents in a search space.
	ListBySpace(ctx context.Context, spaceID string) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent returns the concatenated content of all chunks.
	GetContent(ctx context.Context, documentID string) (string, error)

	// GetDetails returns metadata for display.
	GetDetails(ctx context.Context, documentID string) (*DocumentDetails, error)

	// Delete removes a document and its chunks.
	Delete(ctx context.Context, documentID string) error
}

// DocumentDetails provides a standardised view of document metadata.
type DocumentDetails struct {
	ID            string
	SearchSpaceID string
	SpaceName     string
	SourceType    domain.SourceType
	Title         string
	URI           string
	ChunkCount    int
	CreatedAt     time.Time

	// Metadata contains flattened key-value pairs for display.
	Metadata map[string]string
}

// SpaceService manages search spaces.
type SpaceService interface {
	// Create registers a new search space and returns it.
	Create(ctx context.Context, name, description string) (*domain.SearchSpace, error)

	// List returns all search spaces.
	List(ctx context.Context) ([]domain.SearchSpace, error)

	// Get retrieves a space by ID or, failing that, by name.
	Get(ctx context.Context, idOrName string) (*domain.SearchSpace, error)

	// Delete removes a space and everything indexed in it.
	Delete(ctx context.Context, id string) error
}
