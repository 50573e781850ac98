// Package html extracts the visible text of an HTML page for indexing.
// Navigation chrome, scripts and styles are dropped; the title is kept.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise extracts the readable text of an HTML page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := string(raw.Content)

	title := normalisers.MetadataTitle(raw.Metadata)
	if title == "" {
		title = extractHTMLTitle(rawContent)
	}
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	metadata := normalisers.CopyMetadata(raw.Metadata)
	metadata["mime_type"] = raw.MIMEType
	metadata["format"] = "html"
	if desc := extractDescription(rawContent); desc != "" {
		metadata["description"] = desc
	}

	return &driven.NormaliseResult{
		Title:    title,
		Content:  stripHTML(rawContent),
		Metadata: metadata,
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Tag             = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	metaDescription   = regexp.MustCompile(`(?is)<meta\s+[^>]*name=["']description["'][^>]*content=["']([^"']*)["']`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
)

// extractHTMLTitle returns the <title>, or the first <h1> when it is missing.
func extractHTMLTitle(content string) string {
	for _, re := range []*regexp.Regexp{titleTag, h1Tag} {
		if m := re.FindStringSubmatch(content); m != nil {
			title := allTags.ReplaceAllString(m[1], "")
			title = strings.Join(strings.Fields(html.UnescapeString(title)), " ")
			if title != "" {
				return title
			}
		}
	}
	return ""
}

func extractDescription(content string) string {
	if m := metaDescription.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	// Remove non-content elements entirely
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, navTag, htmlComments} {
		content = re.ReplaceAllString(content, "")
	}

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	// Trim each line and remove empty lines
	lines := strings.Split(content, "\n")
	result := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
