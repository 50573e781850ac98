// Package sqlite provides a SQLite-backed knowledge store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file backs three ports:
//
//   - DocumentStore: search spaces, documents and chunks
//   - KeywordIndex: BM25 over an FTS5 table kept in sync by triggers
//   - VectorIndex: exact similarity over chunk embeddings stored as blobs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-ask/data/knowledge.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Chunk replacement runs in a single transaction, so
// searches see either a document's old chunks or its new ones.
package sqlite
