package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a SQLite-backed knowledge store that provides the document store
// and both retrieval indexes through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-ask/data/knowledge.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-ask", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knowledge.db")

	// WAL for concurrent readers; foreign keys on every pooled connection
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// KeywordIndex returns an FTS5-backed KeywordIndex over this store's chunks.
func (s *Store) KeywordIndex() driven.KeywordIndex {
	return &keywordIndex{store: s}
}

// VectorIndex returns a VectorIndex over this store's chunk embeddings.
func (s *Store) VectorIndex(dims int, similarity domain.Similarity) driven.VectorIndex {
	return newVectorIndex(s, dims, similarity)
}

// migrate applies every migration newer than the recorded schema version.
// Each script runs in its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	pending, err := migrations.Pending(current)
	if err != nil {
		return err
	}

	for _, m := range pending {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// CreateSpace registers a new search space.
func (s *documentStore) CreateSpace(ctx context.Context, space *domain.SearchSpace) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO search_spaces (id, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, space.ID, space.Name, space.Description, space.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("space %s: %w", space.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("creating space: %w", err)
	}
	return nil
}

// GetSpace retrieves a search space by ID.
func (s *documentStore) GetSpace(ctx context.Context, id string) (*domain.SearchSpace, error) {
	var space domain.SearchSpace
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM search_spaces WHERE id = ?
	`, id).Scan(&space.ID, &space.Name, &space.Description, &space.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning space: %w", err)
	}
	return &space, nil
}

// ListSpaces returns all search spaces, oldest first.
func (s *documentStore) ListSpaces(ctx context.Context) ([]domain.SearchSpace, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM search_spaces
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying spaces: %w", err)
	}
	defer rows.Close()

	var spaces []domain.SearchSpace //nolint:prealloc // size unknown from query
	for rows.Next() {
		var space domain.SearchSpace
		if err := rows.Scan(&space.ID, &space.Name, &space.Description, &space.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning space: %w", err)
		}
		spaces = append(spaces, space)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spaces: %w", err)
	}

	return spaces, nil
}

// DeleteSpace removes a space. Documents and chunks cascade.
func (s *documentStore) DeleteSpace(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM search_spaces WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting space: %w", err)
	}
	return requireAffected(res)
}

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if _, err := s.GetSpace(ctx, doc.SearchSpaceID); err != nil {
		return fmt.Errorf("space %s: %w", doc.SearchSpaceID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, search_space_id, title, source_type, source_uri, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			search_space_id = excluded.search_space_id,
			title = excluded.title,
			source_type = excluded.source_type,
			source_uri = excluded.source_uri,
			content = excluded.content,
			metadata = excluded.metadata
	`, doc.ID, doc.SearchSpaceID, doc.Title, string(doc.SourceType), doc.SourceURI,
		doc.Content, string(metadataJSON), doc.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, search_space_id, title, source_type, source_uri, content, metadata, created_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns the documents in a search space, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, spaceID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, search_space_id, title, source_type, source_uri, content, metadata, created_at
		FROM documents WHERE search_space_id = ?
		ORDER BY created_at DESC, id
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document and its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// ReplaceChunks swaps a document's chunk set inside one transaction.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var spaceID string
	err = tx.QueryRowContext(ctx, "SELECT search_space_id FROM documents WHERE id = ?", documentID).Scan(&spaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
		}
		return fmt.Errorf("loading document: %w", err)
	}

	for i := range chunks {
		if chunks[i].DocumentID != documentID || chunks[i].SearchSpaceID != spaceID {
			return fmt.Errorf("%w: chunk %s does not belong to document %s",
				domain.ErrInvalidInput, chunks[i].ID, documentID)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, search_space_id, content, position, span_start, span_end, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.SearchSpaceID, chunk.Content,
			chunk.Position, chunk.Span.Start, chunk.Span.End,
			float32SliceToBytes(chunk.Embedding), string(metadataJSON)); err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const chunkColumns = `id, document_id, search_space_id, content, position, span_start, span_end, embedding, metadata`

// GetChunks retrieves all chunks for a document.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY position", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// CountChunks returns the number of chunks in a search space.
func (s *documentStore) CountChunks(ctx context.Context, spaceID string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE search_space_id = ?", spaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// requireAffected maps a delete that matched nothing to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// isConstraintViolation reports a UNIQUE or PRIMARY KEY failure.
func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var sourceType string
	var metadataJSON sql.NullString

	if err := row.Scan(&doc.ID, &doc.SearchSpaceID, &doc.Title, &sourceType, &doc.SourceURI,
		&doc.Content, &metadataJSON, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.SourceType = domain.SourceType(sourceType)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &doc, nil
}

// scanChunk scans a single chunk row.
func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON sql.NullString

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.SearchSpaceID, &chunk.Content,
		&chunk.Position, &chunk.Span.Start, &chunk.Span.End, &embeddingBlob, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}
