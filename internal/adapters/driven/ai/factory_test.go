package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *domain.EmbeddingConfig
		wantNil  bool
		wantErr  bool
		wantDims int
	}{
		{name: "nil config returns nil", cfg: nil, wantNil: true},
		{name: "unconfigured returns nil", cfg: &domain.EmbeddingConfig{}, wantNil: true},
		{
			name:     "ollama",
			cfg:      &domain.EmbeddingConfig{Provider: domain.AIProviderOllama, Model: "nomic-embed-text", Dimensions: 768},
			wantDims: 768,
		},
		{
			name:     "openai with chosen dimensions",
			cfg:      &domain.EmbeddingConfig{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "text-embedding-3-small", Dimensions: 512},
			wantDims: 512,
		},
		{
			name:    "openai without key",
			cfg:     &domain.EmbeddingConfig{Provider: domain.AIProviderOpenAI, Dimensions: 1536},
			wantErr: true,
		},
		{
			name:    "fixed-size model with wrong dimensions",
			cfg:     &domain.EmbeddingConfig{Provider: domain.AIProviderOllama, Model: "nomic-embed-text", Dimensions: 1024},
			wantErr: true,
		},
		{
			name:    "anthropic has no embeddings",
			cfg:     &domain.EmbeddingConfig{Provider: domain.AIProviderAnthropic, APIKey: "k", Dimensions: 8},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     &domain.EmbeddingConfig{Provider: "cohere", Dimensions: 8},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *domain.LLMConfig
		wantNil   bool
		wantErr   bool
		wantModel string
	}{
		{name: "unconfigured returns nil", cfg: &domain.LLMConfig{}, wantNil: true},
		{name: "ollama", cfg: &domain.LLMConfig{Provider: domain.AIProviderOllama, Model: "llama3.2"}, wantModel: "llama3.2"},
		{name: "openai", cfg: &domain.LLMConfig{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o"}, wantModel: "gpt-4o"},
		{name: "anthropic", cfg: &domain.LLMConfig{Provider: domain.AIProviderAnthropic, APIKey: "k", Model: "claude-x"}, wantModel: "claude-x"},
		{name: "anthropic without key", cfg: &domain.LLMConfig{Provider: domain.AIProviderAnthropic}, wantErr: true},
		{name: "unknown provider", cfg: &domain.LLMConfig{Provider: "bard"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestCreateReranker(t *testing.T) {
	llm, err := CreateLLMService(&domain.LLMConfig{Provider: domain.AIProviderOllama})
	require.NoError(t, err)

	r, err := CreateReranker(&domain.RerankConfig{Provider: domain.RerankProviderNone}, llm)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = CreateReranker(&domain.RerankConfig{Provider: domain.RerankProviderCohere, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cohere", r.Name())

	_, err = CreateReranker(&domain.RerankConfig{Provider: domain.RerankProviderCohere}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	r, err = CreateReranker(&domain.RerankConfig{Provider: domain.RerankProviderLLM}, llm)
	require.NoError(t, err)
	assert.Equal(t, "llm:llama3.2", r.Name())

	_, err = CreateReranker(&domain.RerankConfig{Provider: domain.RerankProviderLLM}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCreateWebProviders(t *testing.T) {
	providers, err := CreateWebProviders(context.Background(), &domain.WebSearchConfig{})
	require.NoError(t, err)
	assert.Empty(t, providers)

	providers, err = CreateWebProviders(context.Background(), &domain.WebSearchConfig{
		Providers:      []domain.WebProvider{domain.WebProviderSerper, domain.WebProviderTavily, domain.WebProviderGoogle},
		SerperAPIKey:   "s",
		TavilyAPIKey:   "t",
		GoogleAPIKey:   "g",
		GoogleEngineID: "cx",
	})
	require.NoError(t, err)
	require.Len(t, providers, 3)
	assert.Equal(t, "serper", providers[0].Name())
	assert.Equal(t, "tavily", providers[1].Name())
	assert.Equal(t, "google", providers[2].Name())

	_, err = CreateWebProviders(context.Background(), &domain.WebSearchConfig{
		Providers: []domain.WebProvider{domain.WebProviderTavily},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestInit_UnreachableEmbeddingFallsBack(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Embedding.Provider = domain.AIProviderOllama
	cfg.Embedding.BaseURL = "http://127.0.0.1:1"

	result, err := Init(context.Background(), &cfg, nil, true)
	require.NoError(t, err)
	defer result.Close()

	assert.Nil(t, result.EmbeddingService)
	assert.True(t, result.FellBack)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "keywords only")
}

func TestInit_ReachableServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"llama3.2:latest"}]}`))
	}))
	defer srv.Close()

	cfg := domain.DefaultConfig()
	cfg.Embedding.Provider = domain.AIProviderOllama
	cfg.Embedding.BaseURL = srv.URL
	cfg.LLM.Provider = domain.AIProviderOllama
	cfg.LLM.BaseURL = srv.URL
	cfg.Rerank.Provider = domain.RerankProviderLLM

	result, err := Init(context.Background(), &cfg, nil, true)
	require.NoError(t, err)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.NotNil(t, result.LLMService)
	assert.NotNil(t, result.Reranker)
	assert.False(t, result.FellBack)
	assert.Empty(t, result.Warnings)
}

func TestInit_ConfigurationError(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.LLM.Provider = domain.AIProviderOpenAI

	_, err := Init(context.Background(), &cfg, nil, false)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidateProviders(t *testing.T) {
	cfg := domain.DefaultConfig()
	assert.NoError(t, ValidateProviders(context.Background(), &cfg))

	cfg.LLM.Provider = domain.AIProviderOllama
	cfg.LLM.BaseURL = "http://127.0.0.1:1"
	err := ValidateProviders(context.Background(), &cfg)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
