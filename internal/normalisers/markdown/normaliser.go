// Package markdown provides a Normaliser for Markdown documents.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise strips Markdown syntax and keeps the readable text, including
// the bodies of code blocks. Front matter is removed; its title wins over
// the first heading.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	body, frontTitle := splitFrontMatter(string(raw.Content))

	title := normalisers.MetadataTitle(raw.Metadata)
	if title == "" {
		title = frontTitle
	}
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	metadata := normalisers.CopyMetadata(raw.Metadata)
	metadata["mime_type"] = raw.MIMEType
	metadata["format"] = "markdown"

	return &driven.NormaliseResult{
		Title:    title,
		Content:  stripMarkdown(body),
		Metadata: metadata,
	}, nil
}

var (
	frontMatter   = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---\r?\n?`)
	frontTitle    = regexp.MustCompile(`(?m)^title:\s*["']?(.*?)["']?\s*$`)
	h1            = regexp.MustCompile(`(?m)^#\s+(.+?)\s*#*\s*$`)
	codeFence     = regexp.MustCompile("(?m)^\\s*(```|~~~).*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*|~~)([^*_~\n]+)(\*\*|__|\*|~~)`)
	blockquote    = regexp.MustCompile(`(?m)^>\s?`)
	hr            = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList  = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	tableRule     = regexp.MustCompile(`(?m)^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// splitFrontMatter removes a leading YAML block and returns its title.
func splitFrontMatter(content string) (string, string) {
	m := frontMatter.FindStringSubmatchIndex(content)
	if m == nil {
		return content, ""
	}
	var title string
	if t := frontTitle.FindStringSubmatch(content[m[2]:m[3]]); t != nil {
		title = strings.TrimSpace(t[1])
	}
	return content[m[1]:], title
}

func firstHeading(content string) string {
	if m := h1.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stripMarkdown removes common markdown formatting for plain text content.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
