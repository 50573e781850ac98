package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Splitter turns a document into chunks.
type Splitter interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}

// IngestService writes documents and chunks into the store.
type IngestService struct {
	store     driven.DocumentStore
	splitter  Splitter
	embedding driven.EmbeddingService
	dims      int
	batchSize int
	pool      *ants.Pool
}

// NewIngestService creates an ingest service. embedding may be nil, in which
// case chunks are stored without vectors. Call Close to release the pool.
func NewIngestService(
	cfg domain.IngestConfig,
	dims int,
	store driven.DocumentStore,
	splitter Splitter,
	embedding driven.EmbeddingService,
) (*IngestService, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}

	batch := cfg.EmbedBatchSize
	if batch < 1 {
		batch = 32
	}

	return &IngestService{
		store:     store,
		splitter:  splitter,
		embedding: embedding,
		dims:      dims,
		batchSize: batch,
		pool:      pool,
	}, nil
}

// Close releases the embedding pool.
func (s *IngestService) Close() {
	s.pool.Release()
}

// UpsertChunks implements driving.IngestService.
func (s *IngestService) UpsertChunks(ctx context.Context, req driving.UpsertRequest) error {
	if req.DocumentID == "" || req.SearchSpaceID == "" {
		return fmt.Errorf("%w: document and search space are required", domain.ErrInvalidInput)
	}
	if len(req.Embeddings) > 0 && len(req.Embeddings) != len(req.Texts) {
		return fmt.Errorf("%w: %d embeddings for %d chunks", domain.ErrInvalidInput, len(req.Embeddings), len(req.Texts))
	}
	if len(req.Spans) > 0 && len(req.Spans) != len(req.Texts) {
		return fmt.Errorf("%w: %d spans for %d chunks", domain.ErrInvalidInput, len(req.Spans), len(req.Texts))
	}

	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return fmt.Errorf("document %s: %w", req.DocumentID, err)
	}
	if doc.SearchSpaceID != req.SearchSpaceID {
		return fmt.Errorf("%w: document %s belongs to space %s, not %s",
			domain.ErrInvalidInput, doc.ID, doc.SearchSpaceID, req.SearchSpaceID)
	}

	chunks := make([]domain.Chunk, len(req.Texts))
	offset := 0
	for i, text := range req.Texts {
		chunk := domain.Chunk{
			ID:            uuid.New().String(),
			DocumentID:    req.DocumentID,
			SearchSpaceID: req.SearchSpaceID,
			Content:       text,
			Position:      i,
			Metadata:      make(map[string]any),
		}
		if len(req.Spans) > 0 {
			chunk.Span = req.Spans[i]
		} else {
			n := len([]rune(text))
			chunk.Span = domain.TokenSpan{Start: offset, End: offset + n}
			offset += n
		}
		if len(req.Embeddings) > 0 {
			chunk.Embedding = req.Embeddings[i]
			if err := chunk.ValidateDimensions(s.dims); err != nil {
				return err
			}
		}
		chunks[i] = chunk
	}

	if err := s.store.ReplaceChunks(ctx, req.DocumentID, chunks); err != nil {
		return fmt.Errorf("replace chunks for %s: %w", req.DocumentID, err)
	}

	logger.Debug("Upserted %d chunks for document %s", len(chunks), req.DocumentID)
	return nil
}

// IngestDocument implements driving.IngestService.
func (s *IngestService) IngestDocument(
	ctx context.Context, doc *domain.Document, content string,
) (*driving.IngestResult, error) {
	logger.Section("Ingest")

	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if doc.SearchSpaceID == "" {
		return nil, fmt.Errorf("%w: search space is required", domain.ErrInvalidInput)
	}
	if _, err := s.store.GetSpace(ctx, doc.SearchSpaceID); err != nil {
		return nil, fmt.Errorf("search space %s: %w", doc.SearchSpaceID, err)
	}
	if doc.SourceType == "" {
		doc.SourceType = domain.SourceTypeFile
	}
	if !doc.SourceType.IsValid() {
		return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, doc.SourceType)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = doc.SourceURI
	}
	doc.Content = content

	chunks, err := s.splitter.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	req := driving.UpsertRequest{
		DocumentID:    doc.ID,
		SearchSpaceID: doc.SearchSpaceID,
		Texts:         make([]string, len(chunks)),
		Spans:         make([]domain.TokenSpan, len(chunks)),
	}
	for i := range chunks {
		req.Texts[i] = chunks[i].Content
		req.Spans[i] = chunks[i].Span
	}

	if s.embedding != nil && len(chunks) > 0 {
		req.Embeddings, err = s.embedAll(ctx, req.Texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
	}

	prev, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load document %s: %w", doc.ID, err)
		}
		prev = nil
	}

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.UpsertChunks(ctx, req); err != nil {
		s.restoreDocument(ctx, doc.ID, prev)
		return nil, err
	}

	logger.Info("Ingested %q: %d chunks", doc.Title, len(chunks))
	return &driving.IngestResult{
		DocumentID: doc.ID,
		Chunks:     len(chunks),
		Embedded:   len(req.Embeddings) > 0,
	}, nil
}

// restoreDocument puts back the row that IngestDocument overwrote, or removes
// the new row when there was none, so content and chunks stay in step.
func (s *IngestService) restoreDocument(ctx context.Context, id string, prev *domain.Document) {
	// the caller's ctx may be what failed the upsert
	ctx = context.WithoutCancel(ctx)

	var err error
	if prev == nil {
		err = s.store.DeleteDocument(ctx, id)
	} else {
		err = s.store.SaveDocument(ctx, prev)
	}
	if err != nil {
		logger.Error("Restore document %s after failed chunk write: %v", id, err)
		return
	}
	logger.Debug("Restored document %s after failed chunk write", id)
}

// embedAll embeds texts in batches on the worker pool, preserving order.
func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))

		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}
			vecs, err := s.embedding.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				setErr(fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err))
				return
			}
			if len(vecs) != end-start {
				setErr(fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vecs)))
				return
			}
			copy(out[start:end], vecs)
		})
		if err != nil {
			wg.Done()
			setErr(fmt.Errorf("submit embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for i, v := range out {
		if len(v) != s.dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				domain.ErrDimensionMismatch, i, len(v), s.dims)
		}
	}
	return out, nil
}

