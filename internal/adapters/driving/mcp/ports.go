package mcp

import (
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions with citations.
	Ask driving.AskService

	// Search provides hybrid search.
	Search driving.SearchService

	// Rerank reorders search results on request. Optional.
	Rerank driving.RerankService

	// Document manages documents within spaces. Optional.
	Document driving.DocumentService

	// Spaces resolves space names. Optional; without it a space argument
	// is used as an ID.
	Spaces driving.SpaceService

	// DefaultSpace is used when a tool call names no space.
	DefaultSpace string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
