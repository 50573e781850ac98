package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector whose size differs from the
	// deployment's embedding dimensionality. Such writes are rejected.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Research pipeline errors.

	// ErrConfiguration is fatal and surfaced at startup, never per query.
	ErrConfiguration = errors.New("configuration error")

	// ErrRetrievalUnavailable indicates the dense retrieval path failed.
	// Callers fall back to sparse-only or web search.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRerankUnavailable indicates the rerank provider failed.
	// Callers pass candidates through in their original order.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrWebSearchFailure indicates a web search call failed
	// (timeout, quota, network). Treated as empty web evidence.
	ErrWebSearchFailure = errors.New("web search failure")

	// ErrSynthesisFailure indicates answer generation failed.
	// Callers answer with the insufficient-information response.
	ErrSynthesisFailure = errors.New("synthesis failure")
)
