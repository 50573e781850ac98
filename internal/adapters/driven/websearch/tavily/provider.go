// Package tavily provides a web search provider backed by the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.WebSearchProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.tavily.com"
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the Tavily provider.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider queries Tavily's /search endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// New creates a Tavily provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tavily: API key is required")
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

// Search returns at most maxResults results for query.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]driven.WebResult, error) {
	jsonBody, err := json.Marshal(searchRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Tavily reports an exhausted plan as 432.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 432 {
		quota := &driven.QuotaError{Provider: p.Name()}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			quota.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, quota
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily error (status %d): %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]driven.WebResult, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if len(results) == maxResults {
			break
		}
		results = append(results, driven.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "tavily"
}
