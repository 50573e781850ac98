package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for sercha-ask resources.
	uriScheme = "sercha://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "spaces",
		Name:        "spaces",
		Description: "List of all search spaces",
		MIMEType:    "application/json",
	}, s.handleSpacesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "spaces/{spaceId}/documents",
		Name:        "space-documents",
		Description: "Documents indexed in a specific search space",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-content",
		Description: "Content of a specific document",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)
}

// handleSpacesResource returns every search space.
func (s *Server) handleSpacesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Spaces == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	spaces, err := s.ports.Spaces.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing spaces: %w", err)
	}

	type spaceInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}

	infos := make([]spaceInfo, len(spaces))
	for i, sp := range spaces {
		infos[i] = spaceInfo{ID: sp.ID, Name: sp.Name, Description: sp.Description}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleDocumentsResource returns documents for a specific space.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// sercha://spaces/{spaceId}/documents
	spaceID := extractSpaceID(req.Params.URI)
	if spaceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Document.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		URI        string `json:"uri"`
		SourceType string `json:"source_type"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:         docs[i].ID,
			Title:      docs[i].Title,
			URI:        docs[i].SourceURI,
			SourceType: docs[i].SourceType.String(),
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleDocumentContentResource returns the content of a specific document.
func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// sercha://documents/{documentId}
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	content, err := s.ports.Document.GetContent(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document content: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     content,
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSpaceID extracts the space ID from a URI like sercha://spaces/{spaceId}/documents.
func extractSpaceID(uri string) string {
	const prefix = uriScheme + "spaces/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractDocumentID extracts the document ID from a URI like sercha://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
