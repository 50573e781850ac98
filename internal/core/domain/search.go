package domain

import (
	"fmt"
	"strings"
)

// SearchMode selects the granularity of hybrid search results.
type SearchMode string

// Available search modes.
const (
	// SearchModeChunk ranks individual chunks.
	SearchModeChunk SearchMode = "chunk"

	// SearchModeDocument aggregates chunk scores and ranks whole documents.
	SearchModeDocument SearchMode = "document"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeChunk || m == SearchModeDocument
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// SearchOptions configures a hybrid search query.
type SearchOptions struct {
	// SearchSpaceID scopes the query. Required.
	SearchSpaceID string

	// Limit is the maximum number of results (k).
	Limit int

	// Mode selects chunk or document granularity. Defaults to chunk.
	Mode SearchMode

	// SparseOnly skips the dense path. Used as a fallback when
	// embedding is unavailable.
	SparseOnly bool
}

// Provenance records whether a candidate came from the internal index or the web.
type Provenance string

// Candidate provenances.
const (
	ProvenanceInternal Provenance = "internal"
	ProvenanceWeb      Provenance = "web"
)

// RefKind identifies what a SourceRef points at.
type RefKind string

// Source reference kinds.
const (
	RefKindChunk    RefKind = "chunk"
	RefKindDocument RefKind = "document"
	RefKindURL      RefKind = "url"
)

// SourceRef ties a candidate back to something that can be resolved:
// a chunk, a document, or a web URL.
type SourceRef struct {
	Kind RefKind `json:"kind"`

	// ID is the chunk or document ID for internal refs.
	ID string `json:"id,omitempty"`

	// DocumentID is the parent document for chunk refs.
	DocumentID string `json:"document_id,omitempty"`

	// URL is the web result URL, or the document's source URI when known.
	URL string `json:"url,omitempty"`
}

// Resolvable reports whether the reference points at something concrete.
// Unresolvable candidates must never reach a synthesized answer.
func (r SourceRef) Resolvable() bool {
	switch r.Kind {
	case RefKindChunk, RefKindDocument:
		return r.ID != ""
	case RefKindURL:
		return strings.HasPrefix(r.URL, "http://") || strings.HasPrefix(r.URL, "https://")
	default:
		return false
	}
}

// Key returns a stable identity for de-duplication.
func (r SourceRef) Key() string {
	if r.Kind == RefKindURL {
		return string(r.Kind) + ":" + r.URL
	}
	return string(r.Kind) + ":" + r.ID
}

// String returns a human-readable reference.
func (r SourceRef) String() string {
	if r.Kind == RefKindURL {
		return r.URL
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Candidate is a single retrieval hit from either the internal index or the web.
// Candidates are never persisted.
type Candidate struct {
	Content    string     `json:"content"`
	Title      string     `json:"title,omitempty"`
	Score      float64    `json:"score"`
	SourceRef  SourceRef  `json:"source_ref"`
	Provenance Provenance `json:"provenance"`

	// Relevance is how well Content matches the query, in [0, 1].
	// Unlike Score it does not depend on rank.
	Relevance float64 `json:"relevance"`

	// Highlights contains snippets with matched terms.
	Highlights []string `json:"highlights,omitempty"`
}

// EvidenceSet is the ordered set of candidates passed to synthesis.
// Order is significance order. Adding beyond the cap evicts the
// least significant item.
type EvidenceSet struct {
	items []Candidate
	cap   int
	seen  map[string]int
}

// NewEvidenceSet creates an evidence set holding at most capacity items.
// A non-positive capacity means unbounded.
func NewEvidenceSet(capacity int) *EvidenceSet {
	return &EvidenceSet{
		cap:  capacity,
		seen: make(map[string]int),
	}
}

// Add inserts candidates in score order. Duplicates by SourceRef keep the
// higher score. Unresolvable candidates are dropped. Returns the number of
// candidates that were new to the set.
func (e *EvidenceSet) Add(candidates ...Candidate) int {
	added := 0
	for _, c := range candidates {
		if !c.SourceRef.Resolvable() {
			continue
		}
		key := c.SourceRef.Key()
		if idx, ok := e.seen[key]; ok {
			if c.Score > e.items[idx].Score {
				e.items = append(e.items[:idx], e.items[idx+1:]...)
				e.insert(c)
			}
			continue
		}
		e.insert(c)
		added++
	}
	return added
}

// insert places c after every item with an equal or higher score, so
// earlier arrivals win ties.
func (e *EvidenceSet) insert(c Candidate) {
	pos := len(e.items)
	for i := range e.items {
		if c.Score > e.items[i].Score {
			pos = i
			break
		}
	}
	e.items = append(e.items, Candidate{})
	copy(e.items[pos+1:], e.items[pos:])
	e.items[pos] = c

	if e.cap > 0 && len(e.items) > e.cap {
		e.items = e.items[:e.cap]
	}
	e.reindex()
}

func (e *EvidenceSet) reindex() {
	e.seen = make(map[string]int, len(e.items))
	for i := range e.items {
		e.seen[e.items[i].SourceRef.Key()] = i
	}
}

// Items returns a copy of the evidence in significance order.
func (e *EvidenceSet) Items() []Candidate {
	out := make([]Candidate, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of items in the set.
func (e *EvidenceSet) Len() int {
	return len(e.items)
}

// Cap returns the configured capacity.
func (e *EvidenceSet) Cap() int {
	return e.cap
}
