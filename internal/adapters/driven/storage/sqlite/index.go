package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// ==================== Keyword Index ====================

// keywordIndex implements driven.KeywordIndex with FTS5 bm25().
type keywordIndex struct {
	store *Store
}

var _ driven.KeywordIndex = (*keywordIndex)(nil)

// Search ranks chunks in spaceID by BM25. FTS5 reports bm25() as a negative
// number where lower is better, so it is negated.
func (k *keywordIndex) Search(ctx context.Context, spaceID, query string, limit int) ([]driven.SearchHit, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return []driven.SearchHit{}, nil
	}

	rows, err := k.store.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, -bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.seq = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND c.search_space_id = ?
		ORDER BY score DESC, c.id
		LIMIT ?
	`, match, spaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	hits := make([]driven.SearchHit, 0, limit)
	for rows.Next() {
		var hit driven.SearchHit
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}

	return hits, nil
}

// ftsQuery turns free text into an FTS5 expression: every distinct term,
// quoted, joined with OR. Operators in the input are never interpreted.
func ftsQuery(text string) string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex with an exact scan of the
// embeddings stored in one search space.
type vectorIndex struct {
	store      *Store
	dims       int
	similarity func(a, b []float32) float64
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

func newVectorIndex(store *Store, dims int, similarity domain.Similarity) *vectorIndex {
	return &vectorIndex{
		store:      store,
		dims:       dims,
		similarity: vecmath.Func(similarity),
	}
}

// Search returns the k chunks in spaceID closest to query. Chunks stored
// with a different dimensionality are skipped.
func (v *vectorIndex) Search(ctx context.Context, spaceID string, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, document_id, embedding FROM chunks
		WHERE search_space_id = ? AND embedding IS NOT NULL
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var scored []vecmath.Scored
	for rows.Next() {
		var s vecmath.Scored
		var blob []byte
		if err := rows.Scan(&s.ChunkID, &s.DocumentID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		embedding := bytesToFloat32Slice(blob)
		if len(embedding) != v.dims {
			continue
		}
		s.Similarity = v.similarity(query, embedding)
		scored = append(scored, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	top := vecmath.TopK(scored, k)
	hits := make([]driven.VectorHit, len(top))
	for i, s := range top {
		hits[i] = driven.VectorHit{ChunkID: s.ChunkID, DocumentID: s.DocumentID, Similarity: s.Similarity}
	}
	return hits, nil
}
