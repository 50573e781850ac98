// Package serper provides a web search provider backed by the Serper API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.WebSearchProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://google.serper.dev"
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the Serper provider.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider queries Serper's /search endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type searchResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// New creates a Serper provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serper: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Search returns at most maxResults organic results. Serper reports no
// relevance score, so Score is 0.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]driven.WebResult, error) {
	jsonBody, err := json.Marshal(searchRequest{Q: query, Num: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &driven.QuotaError{Provider: p.Name()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serper error (status %d): %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]driven.WebResult, 0, len(searchResp.Organic))
	for _, r := range searchResp.Organic {
		if len(results) == maxResults {
			break
		}
		results = append(results, driven.WebResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}
	return results, nil
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "serper"
}
