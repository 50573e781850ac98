// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Search space, document and chunk persistence
//   - KeywordIndex: Sparse (BM25) retrieval scoped to a search space
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Dense retrieval. Only used when EmbeddingService is configured.
//   - EmbeddingService: Generates vector embeddings. Without it, search is sparse-only.
//   - LLMService: Generation. Without it, decomposition is skipped and the
//     synthesizer answers with extractive evidence.
//   - Reranker: Relevance scoring. Without it, candidates pass through.
//   - WebSearchProvider: Live search. Without it, ROUTE never selects the web.
//   - PromptStore: User-editable prompts. Without it, built-in defaults apply.
//   - Normaliser: Per-format text extraction for ingested files.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
