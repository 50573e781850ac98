package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "sercha-ask-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestSpace creates a search space to satisfy foreign key constraints.
func createTestSpace(t *testing.T, docs driven.DocumentStore, spaceID string) {
	t.Helper()
	err := docs.CreateSpace(context.Background(), &domain.SearchSpace{
		ID:        spaceID,
		Name:      "Space " + spaceID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)
}

// createTestDocument creates a document with the given chunk contents.
// Chunk IDs are docID + "-" + position.
func createTestDocument(t *testing.T, docs driven.DocumentStore, docID, spaceID string, contents ...string) {
	t.Helper()
	ctx := context.Background()
	err := docs.SaveDocument(ctx, &domain.Document{
		ID:            docID,
		SearchSpaceID: spaceID,
		Title:         "Test Document " + docID,
		SourceType:    domain.SourceTypeFile,
		SourceURI:     "file:///test/" + docID,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)

	chunks := make([]domain.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = domain.Chunk{
			ID:            docID + "-" + string(rune('0'+i)),
			DocumentID:    docID,
			SearchSpaceID: spaceID,
			Content:       content,
			Position:      i,
		}
	}
	require.NoError(t, docs.ReplaceChunks(ctx, docID, chunks))
}

// ==================== Store Creation Tests ====================

func TestNewStore_Success(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, "knowledge.db", filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	for _, table := range []string{"search_spaces", "documents", "chunks", "chunks_fts"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	createTestSpace(t, store.DocumentStore(), "s1")
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	space, err := reopened.DocumentStore().GetSpace(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Space s1", space.Name)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var enabled int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

// ==================== Space Tests ====================

func TestDocumentStore_Spaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, docs.CreateSpace(ctx, &domain.SearchSpace{ID: "b", Name: "Second", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, docs.CreateSpace(ctx, &domain.SearchSpace{ID: "a", Name: "First", Description: "notes", CreatedAt: now}))

	space, err := docs.GetSpace(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "First", space.Name)
	assert.Equal(t, "notes", space.Description)
	assert.True(t, space.CreatedAt.Equal(now))

	spaces, err := docs.ListSpaces(ctx)
	require.NoError(t, err)
	require.Len(t, spaces, 2)
	assert.Equal(t, "a", spaces[0].ID)
	assert.Equal(t, "b", spaces[1].ID)

	err = docs.CreateSpace(ctx, &domain.SearchSpace{ID: "a", Name: "Again", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = docs.GetSpace(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteSpaceCascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	createTestSpace(t, docs, "s1")
	createTestDocument(t, docs, "d1", "s1", "fusion notes")

	require.NoError(t, docs.DeleteSpace(ctx, "s1"))

	_, err := docs.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetChunk(ctx, "d1-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	hits, err := store.KeywordIndex().Search(ctx, "s1", "fusion", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, docs.DeleteSpace(ctx, "s1"), domain.ErrNotFound)
}

// ==================== Document Tests ====================

func TestDocumentStore_SaveAndGetDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")

	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:            "doc-1",
		SearchSpaceID: "s1",
		Title:         "Runbook",
		SourceType:    domain.SourceTypeCrawledURL,
		SourceURI:     "https://wiki.example/runbook",
		Content:       "Restart the worker.",
		Metadata:      map[string]any{"author": "ops"},
		CreatedAt:     now,
	}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Runbook", got.Title)
	assert.Equal(t, domain.SourceTypeCrawledURL, got.SourceType)
	assert.Equal(t, "https://wiki.example/runbook", got.SourceURI)
	assert.Equal(t, "Restart the worker.", got.Content)
	assert.Equal(t, "ops", got.Metadata["author"])
	assert.True(t, got.CreatedAt.Equal(now))

	doc.Title = "Runbook v2"
	require.NoError(t, docs.SaveDocument(ctx, doc))
	got, err = docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Runbook v2", got.Title)
}

func TestDocumentStore_SaveDocument_UnknownSpace(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.DocumentStore().SaveDocument(context.Background(), &domain.Document{
		ID: "d", SearchSpaceID: "missing", SourceType: domain.SourceTypeFile, CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")
	createTestSpace(t, docs, "s2")

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, docs.SaveDocument(ctx, &domain.Document{
			ID: id, SearchSpaceID: "s1", SourceType: domain.SourceTypeFile,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	createTestDocument(t, docs, "other", "s2")

	list, err := docs.ListDocuments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	list, err = docs.ListDocuments(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")
	createTestDocument(t, docs, "d1", "s1", "alpha", "beta")

	require.NoError(t, docs.DeleteDocument(ctx, "d1"))

	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	count, err := docs.CountChunks(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, docs.DeleteDocument(ctx, "d1"), domain.ErrNotFound)
}

// ==================== Chunk Tests ====================

func TestDocumentStore_ReplaceChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")
	createTestDocument(t, docs, "d1", "s1", "first version")

	replacement := []domain.Chunk{
		{
			ID: "n2", DocumentID: "d1", SearchSpaceID: "s1", Content: "second", Position: 1,
			Span: domain.TokenSpan{Start: 6, End: 12}, Embedding: []float32{0.25, -1.5},
		},
		{
			ID: "n1", DocumentID: "d1", SearchSpaceID: "s1", Content: "first", Position: 0,
			Span: domain.TokenSpan{Start: 0, End: 5}, Metadata: map[string]any{"heading": "Intro"},
		},
	}
	require.NoError(t, docs.ReplaceChunks(ctx, "d1", replacement))

	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "n1", chunks[0].ID)
	assert.Equal(t, "Intro", chunks[0].Metadata["heading"])
	assert.Nil(t, chunks[0].Embedding)
	assert.Equal(t, "n2", chunks[1].ID)
	assert.Equal(t, domain.TokenSpan{Start: 6, End: 12}, chunks[1].Span)
	assert.Equal(t, []float32{0.25, -1.5}, chunks[1].Embedding)

	_, err = docs.GetChunk(ctx, "d1-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunk, err := docs.GetChunk(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, "s1", chunk.SearchSpaceID)
}

func TestDocumentStore_ReplaceChunks_Rejections(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")
	createTestDocument(t, docs, "d1", "s1", "kept one", "kept two")
	createTestDocument(t, docs, "d2", "s1", "other doc")

	tests := []struct {
		name    string
		docID   string
		chunks  []domain.Chunk
		wantErr error
	}{
		{"unknown document", "missing", nil, domain.ErrNotFound},
		{"foreign chunk", "d1", []domain.Chunk{
			{ID: "x", DocumentID: "d2", SearchSpaceID: "s1", Content: "x"},
		}, domain.ErrInvalidInput},
		{"wrong space", "d1", []domain.Chunk{
			{ID: "x", DocumentID: "d1", SearchSpaceID: "s2", Content: "x"},
		}, domain.ErrInvalidInput},
		{"id owned by another document", "d1", []domain.Chunk{
			{ID: "fresh", DocumentID: "d1", SearchSpaceID: "s1", Content: "x", Position: 0},
			{ID: "d2-0", DocumentID: "d1", SearchSpaceID: "s1", Content: "y", Position: 1},
		}, domain.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := docs.ReplaceChunks(ctx, tt.docID, tt.chunks)
			assert.ErrorIs(t, err, tt.wantErr)

			chunks, err := docs.GetChunks(ctx, "d1")
			require.NoError(t, err)
			require.Len(t, chunks, 2, "failed replacement leaves the old set")
			assert.Equal(t, "kept one", chunks[0].Content)
		})
	}
}

func TestDocumentStore_CountChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()
	createTestSpace(t, docs, "s1")
	createTestSpace(t, docs, "s2")
	createTestDocument(t, docs, "d1", "s1", "a", "b")
	createTestDocument(t, docs, "d2", "s1", "c")
	createTestDocument(t, docs, "d3", "s2", "d")

	count, err := docs.CountChunks(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// ==================== Helper Tests ====================

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1, -1, 3.14159, float32(1e-7)}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
