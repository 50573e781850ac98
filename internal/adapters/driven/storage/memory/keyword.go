package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure KeywordIndex implements the interface.
var _ driven.KeywordIndex = (*KeywordIndex)(nil)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// KeywordIndex scores a DocumentStore's chunks with BM25. Statistics are
// computed per query over the queried space, so writes are visible at once.
type KeywordIndex struct {
	store *DocumentStore
}

// NewKeywordIndex creates a keyword index over store.
func NewKeywordIndex(store *DocumentStore) *KeywordIndex {
	return &KeywordIndex{store: store}
}

// Search returns chunks in spaceID ranked by BM25 score, best first.
func (k *KeywordIndex) Search(_ context.Context, spaceID, query string, limit int) ([]driven.SearchHit, error) {
	terms := uniqueTerms(tokenize(query))
	if len(terms) == 0 || limit <= 0 {
		return []driven.SearchHit{}, nil
	}

	type doc struct {
		chunkID    string
		documentID string
		freqs      map[string]int
		length     int
	}

	var docs []doc
	df := make(map[string]int, len(terms))
	totalLen := 0

	k.store.eachChunk(spaceID, func(chunk *domain.Chunk) {
		tokens := tokenize(chunk.Content)
		freqs := make(map[string]int)
		for _, tok := range tokens {
			freqs[tok]++
		}
		for _, term := range terms {
			if freqs[term] > 0 {
				df[term]++
			}
		}
		totalLen += len(tokens)
		docs = append(docs, doc{chunkID: chunk.ID, documentID: chunk.DocumentID, freqs: freqs, length: len(tokens)})
	})

	if len(docs) == 0 {
		return []driven.SearchHit{}, nil
	}

	n := float64(len(docs))
	avgLen := float64(totalLen) / n

	hits := make([]driven.SearchHit, 0)
	for _, d := range docs {
		var score float64
		for _, term := range terms {
			tf := float64(d.freqs[term])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(d.length)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, driven.SearchHit{ChunkID: d.chunkID, DocumentID: d.documentID, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
