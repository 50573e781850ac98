package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// Ensure SpaceService implements the interface.
var _ driving.SpaceService = (*SpaceService)(nil)

// DocumentService manages documents within search spaces.
type DocumentService struct {
	docStore driven.DocumentStore
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore) *DocumentService {
	return &DocumentService{docStore: docStore}
}

// ListBySpace returns all documents in a search space.
func (s *DocumentService) ListBySpace(ctx context.Context, spaceID string) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx, spaceID)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent returns the document's stored content, or its chunks joined
// in position order when the ingester supplied no full text.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Content != "" {
		return doc.Content, nil
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})

	var builder strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(chunk.Content)
	}

	return builder.String(), nil
}

// GetDetails returns metadata for display.
func (s *DocumentService) GetDetails(ctx context.Context, documentID string) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var spaceName string
	if space, err := s.docStore.GetSpace(ctx, doc.SearchSpaceID); err == nil {
		spaceName = space.Name
	}

	chunkCount := 0
	if chunks, err := s.docStore.GetChunks(ctx, documentID); err == nil {
		chunkCount = len(chunks)
	}

	metadata := make(map[string]string, len(doc.Metadata))
	for key, value := range doc.Metadata {
		metadata[key] = fmt.Sprintf("%v", value)
	}

	return &driving.DocumentDetails{
		ID:            doc.ID,
		SearchSpaceID: doc.SearchSpaceID,
		SpaceName:     spaceName,
		SourceType:    doc.SourceType,
		Title:         doc.Title,
		URI:           doc.SourceURI,
		ChunkCount:    chunkCount,
		CreatedAt:     doc.CreatedAt,
		Metadata:      metadata,
	}, nil
}

// Delete removes a document and its chunks.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	return s.docStore.DeleteDocument(ctx, documentID)
}

// SpaceService manages search spaces.
type SpaceService struct {
	docStore driven.DocumentStore
}

// NewSpaceService creates a new space service.
func NewSpaceService(docStore driven.DocumentStore) *SpaceService {
	return &SpaceService{docStore: docStore}
}

// Create registers a new search space. Names must be unique.
func (s *SpaceService) Create(ctx context.Context, name, description string) (*domain.SearchSpace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: space name is required", domain.ErrInvalidInput)
	}

	if _, err := s.byName(ctx, name); err == nil {
		return nil, fmt.Errorf("space %q: %w", name, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	space := &domain.SearchSpace{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now(),
	}
	if err := s.docStore.CreateSpace(ctx, space); err != nil {
		return nil, err
	}
	return space, nil
}

// List returns all search spaces.
func (s *SpaceService) List(ctx context.Context) ([]domain.SearchSpace, error) {
	return s.docStore.ListSpaces(ctx)
}

// Get retrieves a space by ID or, failing that, by name.
func (s *SpaceService) Get(ctx context.Context, idOrName string) (*domain.SearchSpace, error) {
	space, err := s.docStore.GetSpace(ctx, idOrName)
	if err == nil {
		return space, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.byName(ctx, idOrName)
}

// Delete removes a space and everything indexed in it.
func (s *SpaceService) Delete(ctx context.Context, id string) error {
	return s.docStore.DeleteSpace(ctx, id)
}

func (s *SpaceService) byName(ctx context.Context, name string) (*domain.SearchSpace, error) {
	spaces, err := s.docStore.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range spaces {
		if strings.EqualFold(spaces[i].Name, name) {
			return &spaces[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
