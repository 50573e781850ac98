package domain

import (
	"fmt"
	"time"
)

// SourceType identifies where a document's content came from.
type SourceType string

// Known source types. Connector feeds and uploads all land here as raw text.
const (
	SourceTypeExtension  SourceType = "EXTENSION"
	SourceTypeCrawledURL SourceType = "CRAWLED_URL"
	SourceTypeFile       SourceType = "FILE"
	SourceTypeSlack      SourceType = "SLACK_CONNECTOR"
	SourceTypeNotion     SourceType = "NOTION_CONNECTOR"
	SourceTypeYouTube    SourceType = "YOUTUBE_VIDEO"
	SourceTypeGitHub     SourceType = "GITHUB_CONNECTOR"
	SourceTypeLinear     SourceType = "LINEAR_CONNECTOR"
	SourceTypePodcast    SourceType = "PODCAST"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeExtension, SourceTypeCrawledURL, SourceTypeFile,
		SourceTypeSlack, SourceTypeNotion, SourceTypeYouTube,
		SourceTypeGitHub, SourceTypeLinear, SourceTypePodcast:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// SearchSpace is a logical partition of the knowledge base.
// Every retrieval operation is scoped to exactly one search space.
type SearchSpace struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Document represents an indexed document with metadata.
// A document exclusively owns its chunks.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// SourceType records which collaborator produced the content.
	SourceType SourceType

	// SourceURI is the original location (file path, URL, etc).
	SourceURI string

	// SearchSpaceID scopes the document for retrieval.
	SearchSpaceID string

	// Content is the full normalised text, if the ingester supplied it.
	Content string

	// Metadata contains arbitrary key-value pairs from the source.
	Metadata map[string]any

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time
}

// TokenSpan locates a chunk inside its parent document's content.
// Offsets are rune positions; End is exclusive.
type TokenSpan struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s TokenSpan) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Chunk represents a searchable unit within a document.
// Chunks are immutable: re-indexing a document replaces them with new IDs.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// SearchSpaceID is denormalised from the parent for scoped queries.
	SearchSpaceID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Span locates the chunk within the document content.
	Span TokenSpan

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// ValidateDimensions reports whether the chunk's embedding matches the
// deployment's fixed dimensionality.
func (c *Chunk) ValidateDimensions(dims int) error {
	if len(c.Embedding) != dims {
		return fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
			ErrDimensionMismatch, c.ID, len(c.Embedding), dims)
	}
	return nil
}
