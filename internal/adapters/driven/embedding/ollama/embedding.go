// Package ollama implements driven.EmbeddingService with Ollama's batch
// /api/embed endpoint.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/ollamaapi"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text
)

// Config configures NewEmbeddingService. Zero fields take the defaults.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

type EmbeddingService struct {
	api        *ollamaapi.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`

	// Truncate lets Ollama cut inputs longer than the model context
	// instead of failing the whole batch.
	Truncate bool `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		api:        ollamaapi.New(cfg.BaseURL, cfg.Timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	req := embedRequest{Model: s.model, Input: texts, Truncate: true}
	if err := s.api.Post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: %d embeddings returned for %d inputs", len(resp.Embeddings), len(texts))
	}
	for _, vec := range resp.Embeddings {
		if len(vec) != s.dimensions {
			return nil, fmt.Errorf("%w: %s returned %d dimensions, want %d",
				domain.ErrDimensionMismatch, s.model, len(vec), s.dimensions)
		}
	}
	return resp.Embeddings, nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the server is reachable and the model is pulled.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, s.model)
}

func (s *EmbeddingService) Close() error {
	return nil
}
