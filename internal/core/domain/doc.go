// Package domain defines the core business entities for Sercha Ask.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - SearchSpace: A logical partition of the knowledge base
//   - Document: An indexed document with metadata
//   - Chunk: A searchable unit within a document
//   - Candidate: A retrieval hit from the index or the web
//   - AgentState: The research orchestrator's working state
//   - Config: The immutable process configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, go-playground/validator for Config
//   - Cannot Import: Any internal/ package, any other external dependency
package domain
