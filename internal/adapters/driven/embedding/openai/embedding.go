// Package openai provides an embedding service adapter for the OpenAI
// embeddings API and compatible servers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/openaicompat"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = openaicompat.DefaultBaseURL
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// maxInputs is the API's per-request input limit.
	maxInputs = 2048
)

// Native output sizes. text-embedding-3-* can be shortened on request.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions fixes the vector size. Zero means the model's native size.
	Dimensions int
}

// EmbeddingService generates embeddings using the OpenAI API.
type EmbeddingService struct {
	api        *openaicompat.Client
	model      string
	dimensions int
	shortens   bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		if dimensions, ok = modelDimensions[cfg.Model]; !ok {
			dimensions = 1536
		}
	}

	return &EmbeddingService{
		api:        openaicompat.New("openai", cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		model:      cfg.Model,
		dimensions: dimensions,
		shortens:   strings.HasPrefix(cfg.Model, "text-embedding-3-"),
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, splitting into requests of at most
// maxInputs. Every vector must have Dimensions() entries.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputs {
		end := min(start+maxInputs, len(texts))
		vecs, err := s.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: s.model, Input: texts}
	if s.shortens {
		req.Dimensions = s.dimensions
	}

	var resp embeddingResponse
	if err := s.api.Post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: %d embeddings returned for %d inputs", len(resp.Data), len(texts))
	}

	// The API does not promise response order.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: openai returned %d dimensions, want %d",
				domain.ErrDimensionMismatch, len(d.Embedding), s.dimensions)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the key against the /models endpoint.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
