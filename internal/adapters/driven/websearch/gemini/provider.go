// Package gemini provides a web search provider that runs a Gemini request
// with Google Search grounding and returns the grounding sources.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.WebSearchProvider = (*Provider)(nil)

// DefaultModel is the grounding model.
const DefaultModel = "gemini-2.5-flash"

const searchPrompt = `Search the web for the following query and summarise what the sources say, citing facts precisely.

Query: %s`

// generator is the subset of genai.Models the provider uses.
type generator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config holds configuration for the Gemini provider.
type Config struct {
	APIKey string
	Model  string
}

// Provider turns Gemini grounding metadata into web results.
type Provider struct {
	models generator
	model  string
}

// New creates a Gemini grounding provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{models: client.Models, model: cfg.Model}, nil
}

// Search returns the grounding sources Gemini cited for query. A source's
// snippet is the answer text it supports, and its score is the highest
// confidence reported for it.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]driven.WebResult, error) {
	resp, err := p.models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(fmt.Sprintf(searchPrompt, query), genai.RoleUser)},
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return []driven.WebResult{}, nil
	}

	return groundingResults(resp.Candidates[0].GroundingMetadata, maxResults), nil
}

func groundingResults(gm *genai.GroundingMetadata, maxResults int) []driven.WebResult {
	snippets := make(map[int][]string)
	scores := make(map[int]float64)
	for _, support := range gm.GroundingSupports {
		if support == nil || support.Segment == nil {
			continue
		}
		for j, idx := range support.GroundingChunkIndices {
			i := int(idx)
			snippets[i] = append(snippets[i], strings.TrimSpace(support.Segment.Text))
			if j < len(support.ConfidenceScores) {
				scores[i] = max(scores[i], float64(support.ConfidenceScores[j]))
			}
		}
	}

	results := make([]driven.WebResult, 0, len(gm.GroundingChunks))
	for i, chunk := range gm.GroundingChunks {
		if len(results) == maxResults {
			break
		}
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		results = append(results, driven.WebResult{
			Title:   chunk.Web.Title,
			URL:     chunk.Web.URI,
			Snippet: strings.Join(snippets[i], " "),
			Score:   scores[i],
		})
	}
	return results
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &driven.QuotaError{Provider: "gemini"}
	}
	return fmt.Errorf("gemini: %w", err)
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "gemini"
}
