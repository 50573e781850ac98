// Package plaintext is the fallback Normaliser for text and source files.
package plaintext

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/normalisers"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// languages maps each accepted MIME type to the language recorded in
// metadata. Prose types map to "".
var languages = map[string]string{
	"text/plain":         "",
	"text/csv":           "",
	"text/x-go":          "go",
	"text/x-python":      "python",
	"text/x-rust":        "rust",
	"text/x-java":        "java",
	"text/x-c":           "c",
	"text/x-shellscript": "shell",
	"text/x-sql":         "sql",
	"text/yaml":          "yaml",
	"text/toml":          "toml",
	"text/javascript":    "javascript",
	"text/typescript":    "typescript",
	"text/css":           "css",
	"application/json":   "json",
	"application/xml":    "xml",
}

// maxBlankRun is the longest run of empty lines kept in the output.
const maxBlankRun = 2

type Normaliser struct{}

func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	types := make([]string, 0, len(languages))
	for mime := range languages {
		types = append(types, mime)
	}
	sort.Strings(types)
	return types
}

// Priority is the lowest of the built-in normalisers.
func (n *Normaliser) Priority() int {
	return 5
}

// Normalise repairs the encoding and line endings of raw and trims trailing
// whitespace. Text is otherwise untouched.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text := strings.ToValidUTF8(string(raw.Content), "\uFFFD")
	text = strings.TrimPrefix(text, "\uFEFF")
	text = cleanLines(strings.ReplaceAll(text, "\r\n", "\n"))

	title := normalisers.MetadataTitle(raw.Metadata)
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	metadata := normalisers.CopyMetadata(raw.Metadata)
	metadata["mime_type"] = raw.MIMEType
	metadata["format"] = "text"
	if lang := languages[raw.MIMEType]; lang != "" {
		metadata["language"] = lang
	}

	return &driven.NormaliseResult{Title: title, Content: text, Metadata: metadata}, nil
}

// cleanLines strips trailing spaces and tabs from every line and caps runs of
// blank lines. A final newline is preserved.
func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := 0
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" && i < len(lines)-1 {
			blank++
			if blank > maxBlankRun {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
