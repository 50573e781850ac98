package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit is used when SearchOptions.Limit is not set.
const DefaultSearchLimit = 10

// SearchService provides hybrid search functionality.
type SearchService struct {
	cfg              domain.SearchConfig
	docStore         driven.DocumentStore
	keywordIndex     driven.KeywordIndex
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
}

// NewSearchService creates a new search service.
// The vectorIndex and embeddingService parameters are optional (can be nil).
func NewSearchService(
	cfg domain.SearchConfig,
	docStore driven.DocumentStore,
	keywordIndex driven.KeywordIndex,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
) *SearchService {
	return &SearchService{
		cfg:              cfg,
		docStore:         docStore,
		keywordIndex:     keywordIndex,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
	}
}

// DenseAvailable reports whether the dense path can run at all.
func (s *SearchService) DenseAvailable() bool {
	return s.vectorIndex != nil && s.embeddingService != nil
}

// Search performs hybrid search within one search space.
//
// An embedding failure is returned as ErrRetrievalUnavailable so the caller
// can choose its fallback; retry with SparseOnly for keyword results.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.Candidate, error) {
	logger.Section("Hybrid Search")
	logger.Debug("Query: %q, space: %s", query, opts.SearchSpaceID)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.Candidate{}, nil
	}
	if opts.SearchSpaceID == "" {
		return nil, fmt.Errorf("%w: search space is required", domain.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.SearchModeChunk
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidInput, mode)
	}

	m := s.candidatePool(limit, mode)
	logger.Debug("Limit: %d, mode: %s, per-path pool: %d", limit, mode, m)

	dense, sparse, err := s.retrieve(ctx, query, opts, m)
	if err != nil {
		return nil, err
	}

	var results []domain.Candidate
	if mode == domain.SearchModeDocument {
		results, err = s.fuseDocuments(ctx, query, opts.SearchSpaceID, dense, sparse, limit)
	} else {
		results, err = s.fuseChunks(ctx, query, opts.SearchSpaceID, dense, sparse, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// candidatePool returns m, the number of hits each path retrieves.
func (s *SearchService) candidatePool(limit int, mode domain.SearchMode) int {
	overfetch := s.cfg.Overfetch
	if overfetch < 1 {
		overfetch = 1
	}
	m := limit * overfetch
	if m < s.cfg.MinCandidates {
		m = s.cfg.MinCandidates
	}
	if m < limit {
		m = limit
	}
	if mode == domain.SearchModeDocument {
		// documents own several chunks each
		m *= overfetch
	}
	return m
}

// retrieve runs the dense and sparse paths in parallel. A nil slice means the
// path did not run; an empty slice means it ran and found nothing.
func (s *SearchService) retrieve(
	ctx context.Context, query string, opts domain.SearchOptions, m int,
) (dense, sparse []scoredID, err error) {
	runDense := s.DenseAvailable() && !opts.SparseOnly && s.cfg.DenseWeight > 0
	runSparse := s.keywordIndex != nil && s.cfg.SparseWeight > 0

	logger.Debug("Paths: dense=%t, sparse=%t", runDense, runSparse)

	var denseErr, sparseErr error
	var wg sync.WaitGroup

	if runDense {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dense, denseErr = s.denseSearch(ctx, opts.SearchSpaceID, query, m)
		}()
	}
	if runSparse {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sparse, sparseErr = s.sparseSearch(ctx, opts.SearchSpaceID, query, m)
		}()
	}
	wg.Wait()

	if denseErr != nil {
		logger.Warn("Dense path failed: %v", denseErr)
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, denseErr)
	}

	if sparseErr != nil {
		if dense == nil {
			logger.Warn("Sparse path failed with no dense path: %v", sparseErr)
			return nil, nil, fmt.Errorf("%w: keyword search: %w", domain.ErrRetrievalUnavailable, sparseErr)
		}
		logger.Warn("Sparse path failed, using dense results only: %v", sparseErr)
		sparse = nil
	}

	if !runDense && !runSparse {
		return nil, nil, fmt.Errorf("%w: no retrieval path configured", domain.ErrRetrievalUnavailable)
	}

	return dense, sparse, nil
}

// sparseSearch performs full-text search using the keyword index.
func (s *SearchService) sparseSearch(ctx context.Context, spaceID, query string, limit int) ([]scoredID, error) {
	hits, err := s.keywordIndex.Search(ctx, spaceID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	logger.Debug("Sparse path: %d hits", len(hits))

	results := make([]scoredID, len(hits))
	for i, hit := range hits {
		results[i] = scoredID{chunkID: hit.ChunkID, documentID: hit.DocumentID, score: hit.Score}
	}
	return results, nil
}

// denseSearch embeds the query and performs similarity search.
func (s *SearchService) denseSearch(ctx context.Context, spaceID, query string, limit int) ([]scoredID, error) {
	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := s.vectorIndex.Search(ctx, spaceID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	logger.Debug("Dense path: %d hits", len(hits))

	results := make([]scoredID, len(hits))
	for i, hit := range hits {
		results[i] = scoredID{chunkID: hit.ChunkID, documentID: hit.DocumentID, score: hit.Similarity}
	}
	return results, nil
}

func (s *SearchService) lists(denseIDs, sparseIDs []string, dense, sparse []scoredID) []rankedList {
	var lists []rankedList
	if dense != nil {
		lists = append(lists, rankedList{name: "dense", weight: s.cfg.DenseWeight, ids: denseIDs})
	}
	if sparse != nil {
		lists = append(lists, rankedList{name: "sparse", weight: s.cfg.SparseWeight, ids: sparseIDs})
	}
	return lists
}

// fuseChunks ranks individual chunks and hydrates the top limit.
func (s *SearchService) fuseChunks(
	ctx context.Context, query, spaceID string, dense, sparse []scoredID, limit int,
) ([]domain.Candidate, error) {
	fused := fuseRankings(s.cfg.RRFK, s.lists(chunkIDs(dense), chunkIDs(sparse), dense, sparse)...)
	logger.Debug("Fused %d dense + %d sparse into %d chunks", len(dense), len(sparse), len(fused))

	results := make([]domain.Candidate, 0, min(limit, len(fused)))
	docs := make(map[string]*domain.Document)
	terms := queryTerms(query)
	sims := make(map[string]float64, len(dense))
	for _, h := range dense {
		sims[h.chunkID] = h.score
	}

	for _, hit := range fused {
		if len(results) >= limit {
			break
		}

		chunk, err := s.docStore.GetChunk(ctx, hit.id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Chunk was superseded by a re-index, skip it
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.id, err)
		}
		if chunk.SearchSpaceID != spaceID {
			logger.Warn("Dropping chunk %s from space %s", chunk.ID, chunk.SearchSpaceID)
			continue
		}

		doc, err := s.document(ctx, docs, chunk.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		sim, ok := sims[chunk.ID]
		results = append(results, domain.Candidate{
			Content:   chunk.Content,
			Title:     doc.Title,
			Score:     hit.score,
			Relevance: relevance(sim, ok, terms, chunk.Content),
			SourceRef: domain.SourceRef{
				Kind:       domain.RefKindChunk,
				ID:         chunk.ID,
				DocumentID: doc.ID,
				URL:        webURL(doc.SourceURI),
			},
			Provenance: domain.ProvenanceInternal,
			Highlights: generateHighlights(chunk.Content, query),
		})
	}

	return results, nil
}

// fuseDocuments aggregates chunk scores per document on each path, fuses the
// document rankings, and represents each document by its best chunk.
func (s *SearchService) fuseDocuments(
	ctx context.Context, query, spaceID string, dense, sparse []scoredID, limit int,
) ([]domain.Candidate, error) {
	sum := s.cfg.Aggregation == domain.AggregationSum
	denseDocs := aggregateByDocument(dense, sum)
	sparseDocs := aggregateByDocument(sparse, sum)

	best := make(map[string]string)
	for _, list := range [][]docAggregate{denseDocs, sparseDocs} {
		for _, d := range list {
			if _, ok := best[d.documentID]; !ok {
				best[d.documentID] = d.bestChunk
			}
		}
	}

	fused := fuseRankings(s.cfg.RRFK, s.lists(docIDs(denseDocs), docIDs(sparseDocs), dense, sparse)...)
	logger.Debug("Fused %d dense + %d sparse into %d documents", len(denseDocs), len(sparseDocs), len(fused))

	terms := queryTerms(query)
	sims := make(map[string]float64, len(denseDocs))
	for _, d := range aggregateByDocument(dense, false) {
		sims[d.documentID] = d.score
	}

	results := make([]domain.Candidate, 0, min(limit, len(fused)))
	for _, hit := range fused {
		if len(results) >= limit {
			break
		}

		doc, err := s.docStore.GetDocument(ctx, hit.id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", hit.id, err)
		}
		if doc.SearchSpaceID != spaceID {
			logger.Warn("Dropping document %s from space %s", doc.ID, doc.SearchSpaceID)
			continue
		}

		content := doc.Content
		if chunk, err := s.docStore.GetChunk(ctx, best[doc.ID]); err == nil {
			content = chunk.Content
		}

		sim, ok := sims[doc.ID]
		results = append(results, domain.Candidate{
			Content:   content,
			Title:     doc.Title,
			Score:     hit.score,
			Relevance: relevance(sim, ok, terms, content),
			SourceRef: domain.SourceRef{
				Kind: domain.RefKindDocument,
				ID:   doc.ID,
				URL:  webURL(doc.SourceURI),
			},
			Provenance: domain.ProvenanceInternal,
			Highlights: generateHighlights(content, query),
		})
	}

	return results, nil
}

// document fetches a parent document once per search.
func (s *SearchService) document(
	ctx context.Context, cache map[string]*domain.Document, id string,
) (*domain.Document, error) {
	if doc, ok := cache[id]; ok {
		return doc, nil
	}
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cache[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	cache[id] = doc
	return doc, nil
}

func chunkIDs(hits []scoredID) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.chunkID
	}
	return ids
}

func docIDs(docs []docAggregate) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.documentID
	}
	return ids
}

// webURL returns uri when it is an http(s) URL.
func webURL(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return ""
}

// generateHighlights creates text snippets with matched terms.
func generateHighlights(content, query string) []string {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	var highlights []string

	for _, sentence := range splitSentences(content) {
		sentenceLower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if len(term) < 3 {
				continue
			}
			if strings.Contains(sentenceLower, term) {
				highlights = append(highlights, truncateRunes(sentence, 200))
				break
			}
		}

		if len(highlights) >= 3 {
			break
		}
	}

	return highlights
}

// splitSentences splits content into sentences.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
