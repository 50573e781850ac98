// Package cohere provides a reranker adapter for Cohere-compatible /rerank
// endpoints. Jina and Hugging Face TEI accept the same request shape.
package cohere

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

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "rerank-v3.5"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Cohere reranker.
type Config struct {
	// APIKey is the Cohere API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.cohere.com).
	BaseURL string

	// Model is the rerank model (default: rerank-v3.5).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores documents with a hosted cross-encoder.
type Reranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// New creates a new Cohere reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Score returns one relevance score per document, aligned by index.
// Documents the service leaves out of its results score 0.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	jsonBody, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v2/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		quota := &driven.QuotaError{Provider: r.Name()}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			quota.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, quota
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, string(body))
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(documents))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("cohere: result index %d out of range", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}

// Name identifies the provider.
func (r *Reranker) Name() string {
	return "cohere"
}
