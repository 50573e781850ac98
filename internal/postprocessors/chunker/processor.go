// Package chunker splits document content into overlapping chunks using a
// recursive character splitter, recording where each chunk sits in the
// source text.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// defaultSeparators are tried in order, from paragraph to character.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Processor splits document content into chunks.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSeparators overrides the split hierarchy.
func WithSeparators(separators ...string) Option {
	return func(p *Processor) {
		if len(separators) > 0 {
			p.separators = separators
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks owned by doc. Spans are
// rune offsets into doc.Content.
func (p *Processor) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.chunkSize),
		textsplitter.WithChunkOverlap(p.overlap),
		textsplitter.WithSeparators(p.separators),
	)

	pieces, err := splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("split document %s: %w", doc.ID, err)
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	cursor := 0 // byte offset where the next search starts
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}

		span, next := locate(doc.Content, piece, cursor)
		cursor = next

		chunks = append(chunks, domain.Chunk{
			ID:            uuid.New().String(),
			DocumentID:    doc.ID,
			SearchSpaceID: doc.SearchSpaceID,
			Content:       piece,
			Position:      len(chunks),
			Span:          span,
			Metadata:      make(map[string]any),
		})
	}

	return chunks, nil
}

// locate finds piece in content at or after byte offset from and returns
// its rune span plus the byte offset to resume from. Overlap means the next
// piece can start before this one ends, so searching resumes just past
// this piece's start.
func locate(content, piece string, from int) (domain.TokenSpan, int) {
	if from > len(content) {
		from = len(content)
	}

	i := strings.Index(content[from:], piece)
	if i < 0 {
		// The splitter may have normalised whitespace; fall back to the cursor.
		start := utf8.RuneCountInString(content[:from])
		return domain.TokenSpan{Start: start, End: start + utf8.RuneCountInString(piece)}, from
	}

	byteStart := from + i
	start := utf8.RuneCountInString(content[:byteStart])
	span := domain.TokenSpan{Start: start, End: start + utf8.RuneCountInString(piece)}

	_, size := utf8.DecodeRuneInString(content[byteStart:])
	return span, byteStart + size
}
