// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/sercha-ask/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-ask/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/sercha-ask/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/sercha-ask/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-ask/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/rerank/cohere"
	llmrerank "github.com/custodia-labs/sercha-ask/internal/adapters/driven/rerank/llm"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/websearch/gemini"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/websearch/google"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/websearch/serper"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/websearch/tavily"
	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixedDimensions lists embedding models whose vector size cannot be chosen.
var fixedDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Reranker         driven.Reranker
	WebProviders     []driven.WebSearchProvider
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if dense retrieval is off and search is sparse-only.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds every provider named in cfg. Construction problems are
// configuration errors and fatal. When ping is set, unreachable embedding
// or LLM services are dropped with a warning instead.
func Init(ctx context.Context, cfg *domain.Config, prompts driven.PromptStore, ping bool) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateEmbeddingService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder != nil && ping {
		if err := pingService(ctx, embedder.Ping); err != nil {
			embedder.Close()
			embedder = nil
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%v: %v; searching keywords only", domain.ErrEmbeddingUnavailable, err))
		}
	}
	result.EmbeddingService = embedder
	result.FellBack = embedder == nil && cfg.Embedding.IsConfigured()

	llm, err := CreateLLMService(&cfg.LLM)
	if err != nil {
		result.Close()
		return nil, err
	}
	if llm != nil && ping {
		if err := pingService(ctx, llm.Ping); err != nil {
			llm.Close()
			llm = nil
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%v: %v; answers will be extractive", domain.ErrLLMUnavailable, err))
		}
	}
	result.LLMService = llm

	reranker, err := CreateReranker(&cfg.Rerank, llm)
	if err != nil {
		result.Close()
		return nil, err
	}
	if aware, ok := reranker.(driven.PromptStoreAware); ok && prompts != nil {
		aware.SetPromptStore(prompts)
	}
	result.Reranker = reranker

	providers, err := CreateWebProviders(ctx, &cfg.WebSearch)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.WebProviders = providers

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

func pingService(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return ping(ctx)
}

// ValidateProviders pings the configured embedding and LLM services and
// returns every failure joined.
func ValidateProviders(ctx context.Context, cfg *domain.Config) error {
	var errs []error

	if embedder, err := CreateEmbeddingService(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	} else if embedder != nil {
		defer embedder.Close()
		if err := pingService(ctx, embedder.Ping); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err))
		}
	}

	if llm, err := CreateLLMService(&cfg.LLM); err != nil {
		errs = append(errs, err)
	} else if llm != nil {
		defer llm.Close()
		if err := pingService(ctx, llm.Ping); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err))
		}
	}

	return errors.Join(errs...)
}

// CreateEmbeddingService creates the appropriate embedding service based on config.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(cfg *domain.EmbeddingConfig) (driven.EmbeddingService, error) {
	if cfg == nil || !cfg.IsConfigured() {
		return nil, nil
	}

	if want, ok := fixedDimensions[cfg.Model]; ok && cfg.Dimensions != want {
		return nil, fmt.Errorf("%w: %s produces %d-dimensional vectors, config says %d",
			domain.ErrConfiguration, cfg.Model, want, cfg.Dimensions)
	}

	switch cfg.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout.Duration,
			Dimensions: cfg.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout.Duration,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use ollama or openai",
			domain.ErrConfiguration)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, cfg.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on config.
// Returns nil if the provider is not configured.
func CreateLLMService(cfg *domain.LLMConfig) (driven.LLMService, error) {
	if cfg == nil || !cfg.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch cfg.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})

	case domain.AIProviderAnthropic:
		svc, err = anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return svc, nil
}

// CreateReranker creates the configured reranker. Returns nil for "none".
// The LLM reranker needs llm; without one it is a configuration error.
func CreateReranker(cfg *domain.RerankConfig, llm driven.LLMService) (driven.Reranker, error) {
	if cfg == nil || !cfg.IsConfigured() {
		return nil, nil
	}

	switch cfg.Provider {
	case domain.RerankProviderCohere:
		r, err := cohere.New(cohere.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		return r, nil

	case domain.RerankProviderLLM:
		if llm == nil {
			return nil, fmt.Errorf("%w: llm reranker requires an llm provider", domain.ErrConfiguration)
		}
		return llmrerank.New(llm, cfg.Timeout.Duration), nil

	default:
		return nil, fmt.Errorf("%w: unsupported rerank provider: %s", domain.ErrConfiguration, cfg.Provider)
	}
}

// CreateWebProviders creates one provider per configured name, in order.
func CreateWebProviders(ctx context.Context, cfg *domain.WebSearchConfig) ([]driven.WebSearchProvider, error) {
	if cfg == nil || !cfg.IsConfigured() {
		return nil, nil
	}

	providers := make([]driven.WebSearchProvider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var (
			p   driven.WebSearchProvider
			err error
		)
		switch name {
		case domain.WebProviderTavily:
			p, err = tavily.New(tavily.Config{APIKey: cfg.TavilyAPIKey})
		case domain.WebProviderSerper:
			p, err = serper.New(serper.Config{APIKey: cfg.SerperAPIKey})
		case domain.WebProviderGoogle:
			p, err = google.New(ctx, google.Config{APIKey: cfg.GoogleAPIKey, EngineID: cfg.GoogleEngineID})
		case domain.WebProviderGemini:
			p, err = gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		default:
			err = fmt.Errorf("unsupported web provider: %s", name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
