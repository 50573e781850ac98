// Package memory provides in-process implementations of the storage ports,
// used by tests and by --memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	spaces    map[string]domain.SearchSpace
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk

	// chunkDocs maps chunk ID to its document ID.
	chunkDocs map[string]string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		spaces:    make(map[string]domain.SearchSpace),
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		chunkDocs: make(map[string]string),
	}
}

// CreateSpace registers a search space.
func (s *DocumentStore) CreateSpace(_ context.Context, space *domain.SearchSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[space.ID]; ok {
		return fmt.Errorf("space %s: %w", space.ID, domain.ErrAlreadyExists)
	}
	s.spaces[space.ID] = *space
	return nil
}

// GetSpace retrieves a search space by ID.
func (s *DocumentStore) GetSpace(_ context.Context, id string) (*domain.SearchSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	space, ok := s.spaces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &space, nil
}

// ListSpaces returns all search spaces ordered by creation time.
func (s *DocumentStore) ListSpaces(_ context.Context) ([]domain.SearchSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.SearchSpace, 0, len(s.spaces))
	for _, space := range s.spaces {
		result = append(result, space)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeleteSpace removes a space with its documents and chunks.
func (s *DocumentStore) DeleteSpace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[id]; !ok {
		return domain.ErrNotFound
	}
	for docID, doc := range s.documents {
		if doc.SearchSpaceID == id {
			s.deleteDocumentLocked(docID)
		}
	}
	delete(s.spaces, id)
	return nil
}

// SaveDocument stores or updates a document. The space must exist.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[doc.SearchSpaceID]; !ok {
		return fmt.Errorf("space %s: %w", doc.SearchSpaceID, domain.ErrNotFound)
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns documents for a search space, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, spaceID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.SearchSpaceID == spaceID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	s.deleteDocumentLocked(id)
	return nil
}

func (s *DocumentStore) deleteDocumentLocked(id string) {
	for _, chunk := range s.chunks[id] {
		delete(s.chunkDocs, chunk.ID)
	}
	delete(s.chunks, id)
	delete(s.documents, id)
}

// ReplaceChunks swaps a document's chunk set in one step. Readers see either
// the old set or the new one.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	for i := range chunks {
		if chunks[i].DocumentID != documentID || chunks[i].SearchSpaceID != doc.SearchSpaceID {
			return fmt.Errorf("%w: chunk %s does not belong to document %s",
				domain.ErrInvalidInput, chunks[i].ID, documentID)
		}
		if owner, taken := s.chunkDocs[chunks[i].ID]; taken && owner != documentID {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, domain.ErrAlreadyExists)
		}
	}

	for _, old := range s.chunks[documentID] {
		delete(s.chunkDocs, old.ID)
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	s.chunks[documentID] = stored
	for _, chunk := range stored {
		s.chunkDocs[chunk.ID] = documentID
	}
	return nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	result := make([]domain.Chunk, len(chunks))
	copy(result, chunks)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.chunkDocs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, chunk := range s.chunks[docID] {
		if chunk.ID == id {
			return &chunk, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CountChunks returns the number of chunks in a search space.
func (s *DocumentStore) CountChunks(_ context.Context, spaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for docID, chunks := range s.chunks {
		if s.documents[docID].SearchSpaceID == spaceID {
			n += len(chunks)
		}
	}
	return n, nil
}

// eachChunk calls fn for every chunk in a space under the read lock.
func (s *DocumentStore) eachChunk(spaceID string, fn func(chunk *domain.Chunk)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for docID, chunks := range s.chunks {
		if s.documents[docID].SearchSpaceID != spaceID {
			continue
		}
		for i := range chunks {
			fn(&chunks[i])
		}
	}
}
