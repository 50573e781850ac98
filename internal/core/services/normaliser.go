package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// NormaliserRegistry dispatches raw documents to the highest-priority
// normaliser registered for their MIME type. Unregistered text/* types fall
// back to the text/plain handler.
type NormaliserRegistry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
}

// NewNormaliserRegistry creates a registry holding the given normalisers.
func NewNormaliserRegistry(normalisers ...driven.Normaliser) *NormaliserRegistry {
	r := &NormaliserRegistry{byMIME: make(map[string][]driven.Normaliser)}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser for every MIME type it supports.
func (r *NormaliserRegistry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mimeType := range n.SupportedMIMETypes() {
		list := append(r.byMIME[mimeType], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byMIME[mimeType] = list
	}
}

// Normalise transforms raw with the best matching normaliser.
func (r *NormaliserRegistry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}

	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("%w: unsupported MIME type %q for %s", domain.ErrInvalidInput, raw.MIMEType, raw.URI)
	}

	result, err := n.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalising %s: %w", raw.URI, err)
	}
	return result, nil
}

// Supports reports whether a normaliser would accept mimeType.
func (r *NormaliserRegistry) Supports(mimeType string) bool {
	return r.lookup(mimeType) != nil
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *NormaliserRegistry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mimeType := range r.byMIME {
		types = append(types, mimeType)
	}
	sort.Strings(types)
	return types
}

func (r *NormaliserRegistry) lookup(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.byMIME[mimeType]; len(list) > 0 {
		return list[0]
	}
	if strings.HasPrefix(mimeType, "text/") {
		if list := r.byMIME["text/plain"]; len(list) > 0 {
			return list[0]
		}
	}
	return nil
}

var extMIMETypes = map[string]string{
	".md": "text/markdown", ".markdown": "text/markdown",
	".html": "text/html", ".htm": "text/html", ".xhtml": "application/xhtml+xml",
	".txt": "text/plain", ".text": "text/plain", ".rst": "text/plain", ".log": "text/plain",
	".go": "text/x-go", ".py": "text/x-python", ".rs": "text/x-rust",
	".java": "text/x-java", ".c": "text/x-c", ".h": "text/x-c",
	".js": "text/javascript", ".ts": "text/typescript", ".css": "text/css",
	".yaml": "text/yaml", ".yml": "text/yaml", ".toml": "text/toml",
	".sh": "text/x-shellscript", ".bash": "text/x-shellscript",
	".sql": "text/x-sql", ".csv": "text/csv",
	".json": "application/json", ".xml": "application/xml",
}

// DetectMIMEType determines the MIME type of a file from its extension.
func DetectMIMEType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "text/plain"
	}

	// Custom mappings first (Go's mime package reports video/mp2t for .ts)
	if t, ok := extMIMETypes[strings.ToLower(ext)]; ok {
		return t
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		if idx := strings.Index(mimeType, ";"); idx != -1 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		return mimeType
	}

	return "application/octet-stream"
}
