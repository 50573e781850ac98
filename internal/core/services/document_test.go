package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

func TestDocumentService_ListBySpace(t *testing.T) {
	svc := NewDocumentService(setupTestDocStore(t))

	docs, err := svc.ListBySpace(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = svc.ListBySpace(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentService_GetContent(t *testing.T) {
	store := setupTestDocStore(t)
	svc := NewDocumentService(store)
	ctx := context.Background()

	content, err := svc.GetContent(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Reciprocal rank fusion merges ranked lists. It is robust.\nDense retrieval uses embeddings.", content)

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "full", SearchSpaceID: "s1", Content: "stored full text", CreatedAt: time.Now(),
	}))
	content, err = svc.GetContent(ctx, "full")
	require.NoError(t, err)
	assert.Equal(t, "stored full text", content)

	_, err = svc.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetDetails(t *testing.T) {
	store := setupTestDocStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID: "meta", SearchSpaceID: "s2", Title: "With Metadata", SourceType: domain.SourceTypeNotion,
		Metadata: map[string]any{"pages": 3, "author": "sam"}, CreatedAt: time.Now(),
	}))
	svc := NewDocumentService(store)

	details, err := svc.GetDetails(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Fusion Notes", details.Title)
	assert.Equal(t, "s1", details.SpaceName)
	assert.Equal(t, "https://notes.example/fusion", details.URI)
	assert.Equal(t, 2, details.ChunkCount)

	details, err = svc.GetDetails(ctx, "meta")
	require.NoError(t, err)
	assert.Equal(t, 0, details.ChunkCount)
	assert.Equal(t, map[string]string{"pages": "3", "author": "sam"}, details.Metadata)

	_, err = svc.GetDetails(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Delete(t *testing.T) {
	store := setupTestDocStore(t)
	svc := NewDocumentService(store)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "doc-1"))

	_, err := svc.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "doc-1"), domain.ErrNotFound)
}

func TestSpaceService_Create(t *testing.T) {
	svc := NewSpaceService(setupTestDocStore(t))
	ctx := context.Background()

	space, err := svc.Create(ctx, "  Work Notes ", " team wiki ")
	require.NoError(t, err)
	assert.NotEmpty(t, space.ID)
	assert.Equal(t, "Work Notes", space.Name)
	assert.Equal(t, "team wiki", space.Description)
	assert.False(t, space.CreatedAt.IsZero())

	_, err = svc.Create(ctx, "work notes", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Create(ctx, "   ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSpaceService_GetByIDOrName(t *testing.T) {
	svc := NewSpaceService(setupTestDocStore(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, "Research", "")
	require.NoError(t, err)

	byID, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Research", byID.Name)

	byName, err := svc.Get(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = svc.Get(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSpaceService_ListAndDelete(t *testing.T) {
	store := setupTestDocStore(t)
	svc := NewSpaceService(store)
	ctx := context.Background()

	spaces, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, spaces, 2)

	require.NoError(t, svc.Delete(ctx, "s1"))

	spaces, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "s2", spaces[0].ID)

	_, err = store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "documents go with their space")

	assert.ErrorIs(t, svc.Delete(ctx, "s1"), domain.ErrNotFound)
}
