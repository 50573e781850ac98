// Package mcp provides an MCP (Model Context Protocol) server adapter for
// sercha-ask. It lets AI assistants ask cited questions of, and search, a
// local knowledge base.
package mcp

import "errors"

var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrMissingAskService is returned when the ask service is not provided.
	ErrMissingAskService = errors.New("mcp: ask service is required")
)
