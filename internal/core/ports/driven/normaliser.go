package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// Normaliser extracts searchable text from one family of formats.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority breaks ties when several normalisers accept a MIME type.
	// Higher wins.
	Priority() int

	// Normalise extracts a title and plain text. Chunking happens later.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
type NormaliseResult struct {
	Title    string
	Content  string
	Metadata map[string]any
}
