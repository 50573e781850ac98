package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
)

// paragraphSplitter splits on blank lines.
type paragraphSplitter struct {
	err error
}

func (p paragraphSplitter) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	var chunks []domain.Chunk
	offset := 0
	for _, part := range strings.Split(doc.Content, "\n\n") {
		n := len([]rune(part))
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, domain.Chunk{
				DocumentID:    doc.ID,
				SearchSpaceID: doc.SearchSpaceID,
				Content:       part,
				Position:      len(chunks),
				Span:          domain.TokenSpan{Start: offset, End: offset + n},
			})
		}
		offset += n + 2
	}
	return chunks, nil
}

func newTestIngestService(
	t *testing.T, store *memory.DocumentStore, embedding driven.EmbeddingService, cfg domain.IngestConfig,
) *IngestService {
	t.Helper()
	svc, err := NewIngestService(cfg, 2, store, paragraphSplitter{}, embedding)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func testIngestConfig() domain.IngestConfig {
	return domain.DefaultConfig().Ingest
}

func TestIngestService_IngestDocument(t *testing.T) {
	store := setupTestDocStore(t)
	emb := &mockEmbeddingService{embedding: []float32{0.6, 0.8}}
	svc := newTestIngestService(t, store, emb, testIngestConfig())
	ctx := context.Background()

	doc := &domain.Document{SearchSpaceID: "s1", SourceURI: "/notes/oncall.md"}
	result, err := svc.IngestDocument(ctx, doc, "First paragraph.\n\nSecond paragraph.\n\nThird.")

	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, 3, result.Chunks)
	assert.True(t, result.Embedded)

	saved, err := store.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "/notes/oncall.md", saved.Title, "title defaults to the source URI")
	assert.Equal(t, domain.SourceTypeFile, saved.SourceType)
	assert.False(t, saved.CreatedAt.IsZero())

	chunks, err := store.GetChunks(ctx, result.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Second paragraph.", chunks[1].Content)
	assert.Equal(t, domain.TokenSpan{Start: 18, End: 35}, chunks[1].Span)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, "s1", c.SearchSpaceID)
		assert.Equal(t, []float32{0.6, 0.8}, c.Embedding)
	}
}

func TestIngestService_WithoutEmbedding(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())

	result, err := svc.IngestDocument(context.Background(),
		&domain.Document{SearchSpaceID: "s1", Title: "Plain"}, "only text")

	require.NoError(t, err)
	assert.False(t, result.Embedded)
	chunks, err := store.GetChunks(context.Background(), result.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].Embedding)
}

func TestIngestService_IngestDocumentValidation(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())
	ctx := context.Background()

	_, err := svc.IngestDocument(ctx, nil, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.IngestDocument(ctx, &domain.Document{}, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.IngestDocument(ctx, &domain.Document{SearchSpaceID: "missing"}, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.IngestDocument(ctx, &domain.Document{SearchSpaceID: "s1", SourceType: "fax"}, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestService_SplitterFailure(t *testing.T) {
	store := setupTestDocStore(t)
	svc, err := NewIngestService(testIngestConfig(), 2, store, paragraphSplitter{err: errors.New("bad encoding")}, nil)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.IngestDocument(context.Background(), &domain.Document{ID: "new", SearchSpaceID: "s1"}, "x")

	assert.ErrorContains(t, err, "bad encoding")
	_, getErr := store.GetDocument(context.Background(), "new")
	assert.ErrorIs(t, getErr, domain.ErrNotFound)
}

func TestIngestService_EmbeddingFailure(t *testing.T) {
	store := setupTestDocStore(t)
	emb := &mockEmbeddingService{embedErr: errors.New("connection refused"), dims: 2}
	svc := newTestIngestService(t, store, emb, testIngestConfig())

	_, err := svc.IngestDocument(context.Background(), &domain.Document{ID: "new", SearchSpaceID: "s1"}, "a\n\nb")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	_, getErr := store.GetDocument(context.Background(), "new")
	assert.ErrorIs(t, getErr, domain.ErrNotFound, "nothing is saved when embedding fails")
}

// failingChunkStore fails every chunk write.
type failingChunkStore struct {
	*memory.DocumentStore
}

func (failingChunkStore) ReplaceChunks(context.Context, string, []domain.Chunk) error {
	return errors.New("disk full")
}

func TestIngestService_ChunkWriteFailureRestoresDocument(t *testing.T) {
	store := setupTestDocStore(t)
	svc, err := NewIngestService(testIngestConfig(), 2, failingChunkStore{store}, paragraphSplitter{}, nil)
	require.NoError(t, err)
	defer svc.Close()
	ctx := context.Background()

	t.Run("existing document keeps its old row and chunks", func(t *testing.T) {
		doc := &domain.Document{ID: "doc-1", SearchSpaceID: "s1", Title: "Rewritten"}
		_, err := svc.IngestDocument(ctx, doc, "Brand new content.")

		assert.ErrorContains(t, err, "disk full")
		saved, getErr := store.GetDocument(ctx, "doc-1")
		require.NoError(t, getErr)
		assert.Equal(t, "Fusion Notes", saved.Title)
		assert.Empty(t, saved.Content)

		chunks, getErr := store.GetChunks(ctx, "doc-1")
		require.NoError(t, getErr)
		assert.Equal(t, []string{"c1", "c2"}, storedChunkIDs(chunks))
	})

	t.Run("new document is removed", func(t *testing.T) {
		doc := &domain.Document{ID: "fresh", SearchSpaceID: "s1", Title: "Fresh"}
		_, err := svc.IngestDocument(ctx, doc, "Some text.")

		assert.ErrorContains(t, err, "disk full")
		_, getErr := store.GetDocument(ctx, "fresh")
		assert.ErrorIs(t, getErr, domain.ErrNotFound)
	})
}

func TestIngestService_EmbeddingDimensionMismatch(t *testing.T) {
	store := setupTestDocStore(t)
	emb := &mockEmbeddingService{embedding: []float32{1, 0, 0}}
	svc := newTestIngestService(t, store, emb, testIngestConfig())

	_, err := svc.IngestDocument(context.Background(), &domain.Document{ID: "new", SearchSpaceID: "s1"}, "a")

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngestService_ShortBatch(t *testing.T) {
	store := setupTestDocStore(t)
	emb := &mockEmbeddingService{embedding: []float32{1, 0}, short: true}
	svc := newTestIngestService(t, store, emb, testIngestConfig())

	_, err := svc.IngestDocument(context.Background(), &domain.Document{SearchSpaceID: "s1"}, "a\n\nb")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngestService_EmbedsInBatches(t *testing.T) {
	store := setupTestDocStore(t)
	emb := &mockEmbeddingService{embedding: []float32{1, 0}}
	cfg := testIngestConfig()
	cfg.EmbedBatchSize = 2
	svc := newTestIngestService(t, store, emb, cfg)

	result, err := svc.IngestDocument(context.Background(), &domain.Document{SearchSpaceID: "s1"}, "a\n\nb\n\nc\n\nd\n\ne")

	require.NoError(t, err)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 3, emb.batches)
}

func TestIngestService_UpsertChunksReplaces(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())
	ctx := context.Background()

	err := svc.UpsertChunks(ctx, driving.UpsertRequest{
		DocumentID:    "doc-1",
		SearchSpaceID: "s1",
		Texts:         []string{"alpha", "beta"},
		Embeddings:    [][]float32{{1, 0}, {0, 1}},
	})
	require.NoError(t, err)

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "old chunks c1 and c2 are replaced")
	assert.Equal(t, "alpha", chunks[0].Content)
	assert.Equal(t, domain.TokenSpan{Start: 0, End: 5}, chunks[0].Span)
	assert.Equal(t, domain.TokenSpan{Start: 5, End: 9}, chunks[1].Span)
	assert.Equal(t, []float32{0, 1}, chunks[1].Embedding)

	_, err = store.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestService_UpsertChunksRejectsWholeBatch(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())
	ctx := context.Background()

	err := svc.UpsertChunks(ctx, driving.UpsertRequest{
		DocumentID:    "doc-1",
		SearchSpaceID: "s1",
		Texts:         []string{"ok", "wrong size"},
		Embeddings:    [][]float32{{1, 0}, {1, 0, 0}},
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, storedChunkIDs(chunks), "previous chunks are untouched")
}

func TestIngestService_UpsertChunksValidation(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		req     driving.UpsertRequest
		wantErr error
	}{
		{"missing ids", driving.UpsertRequest{Texts: []string{"a"}}, domain.ErrInvalidInput},
		{"embedding count", driving.UpsertRequest{
			DocumentID: "doc-1", SearchSpaceID: "s1", Texts: []string{"a", "b"}, Embeddings: [][]float32{{1, 0}},
		}, domain.ErrInvalidInput},
		{"span count", driving.UpsertRequest{
			DocumentID: "doc-1", SearchSpaceID: "s1", Texts: []string{"a"}, Spans: []domain.TokenSpan{{}, {}},
		}, domain.ErrInvalidInput},
		{"unknown document", driving.UpsertRequest{
			DocumentID: "nope", SearchSpaceID: "s1", Texts: []string{"a"},
		}, domain.ErrNotFound},
		{"wrong space", driving.UpsertRequest{
			DocumentID: "doc-1", SearchSpaceID: "s2", Texts: []string{"a"},
		}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.UpsertChunks(ctx, tt.req), tt.wantErr)
		})
	}
}

func TestIngestService_ReingestIsSearchable(t *testing.T) {
	store := setupTestDocStore(t)
	svc := newTestIngestService(t, store, nil, testIngestConfig())
	ctx := context.Background()

	doc := &domain.Document{ID: "runbook", SearchSpaceID: "s1", Title: "Runbook", CreatedAt: time.Now()}
	_, err := svc.IngestDocument(ctx, doc, "Restart the queue worker.")
	require.NoError(t, err)
	_, err = svc.IngestDocument(ctx, doc, "Page the database team.\n\nThen restart replicas.")
	require.NoError(t, err)

	search := NewSearchService(testSearchConfig(), store, memory.NewKeywordIndex(store), nil, nil)
	results, err := search.Search(ctx, "restart", domain.SearchOptions{SearchSpaceID: "s1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Then restart replicas.", results[0].Content)
}

func storedChunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
