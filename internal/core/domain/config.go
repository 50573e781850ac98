package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// RerankProvider identifies a reranking backend.
type RerankProvider string

// Available rerank providers.
const (
	// RerankProviderNone disables reranking; candidates pass through.
	RerankProviderNone RerankProvider = "none"

	// RerankProviderCohere uses a Cohere-compatible /rerank endpoint
	// (Cohere, Jina, and self-hosted TEI all speak it).
	RerankProviderCohere RerankProvider = "cohere"

	// RerankProviderLLM scores candidates with the configured LLM.
	RerankProviderLLM RerankProvider = "llm"
)

// WebProvider identifies a live web search backend.
type WebProvider string

// Available web search providers.
const (
	WebProviderTavily WebProvider = "tavily"
	WebProviderSerper WebProvider = "serper"
	WebProviderGoogle WebProvider = "google"
	WebProviderGemini WebProvider = "gemini"
)

// Similarity is the dense similarity function, fixed per deployment.
type Similarity string

// Similarity functions.
const (
	SimilarityCosine Similarity = "cosine"
	SimilarityDot    Similarity = "dot"
)

// Aggregation combines chunk scores into a document score.
type Aggregation string

// Aggregation functions.
const (
	AggregationMax Aggregation = "max"
	AggregationSum Aggregation = "sum"
)

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   AIProvider `toml:"provider" validate:"omitempty,oneof=ollama openai"`
	Model      string     `toml:"model"`
	BaseURL    string     `toml:"base_url" validate:"omitempty,url"`
	APIKey     string     `toml:"api_key"`
	Dimensions int        `toml:"dimensions" validate:"gt=0"`
	Timeout    Duration   `toml:"timeout"`
}

// IsConfigured returns true if an embedding provider is set.
func (c EmbeddingConfig) IsConfigured() bool {
	return c.Provider != ""
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Provider AIProvider `toml:"provider" validate:"omitempty,oneof=ollama openai anthropic"`
	Model    string     `toml:"model"`
	BaseURL  string     `toml:"base_url" validate:"omitempty,url"`
	APIKey   string     `toml:"api_key"`
	Timeout  Duration   `toml:"timeout"`
}

// IsConfigured returns true if an LLM provider is set.
func (c LLMConfig) IsConfigured() bool {
	return c.Provider != ""
}

// RerankConfig configures the reranker.
type RerankConfig struct {
	Provider RerankProvider `toml:"provider" validate:"omitempty,oneof=none cohere llm"`
	Model    string         `toml:"model"`
	BaseURL  string         `toml:"base_url" validate:"omitempty,url"`
	APIKey   string         `toml:"api_key"`
	Timeout  Duration       `toml:"timeout"`
}

// IsConfigured returns true if a real reranker is set.
func (c RerankConfig) IsConfigured() bool {
	return c.Provider != "" && c.Provider != RerankProviderNone
}

// WebSearchConfig configures live web search.
type WebSearchConfig struct {
	Providers []WebProvider `toml:"providers" validate:"dive,oneof=tavily serper google gemini"`

	MaxResults int `toml:"max_results" validate:"gte=1,lte=50"`

	// RequestsPerSecond throttles calls per provider.
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`

	TavilyAPIKey   string `toml:"tavily_api_key"`
	SerperAPIKey   string `toml:"serper_api_key"`
	GoogleAPIKey   string `toml:"google_api_key"`
	GoogleEngineID string `toml:"google_engine_id"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
	GeminiModel    string `toml:"gemini_model"`
}

// IsConfigured returns true if at least one web provider is set.
func (c WebSearchConfig) IsConfigured() bool {
	return len(c.Providers) > 0
}

// SearchConfig holds hybrid search policy. Fusion weighting is
// configuration, not a fixed law.
type SearchConfig struct {
	// RRFK is the reciprocal rank fusion constant.
	RRFK float64 `toml:"rrf_k" validate:"gt=0"`

	DenseWeight  float64 `toml:"dense_weight" validate:"gte=0"`
	SparseWeight float64 `toml:"sparse_weight" validate:"gte=0"`

	// Overfetch multiplies k to size each path's candidate list (m).
	Overfetch int `toml:"overfetch" validate:"gte=1"`

	// MinCandidates is the floor for m.
	MinCandidates int `toml:"min_candidates" validate:"gte=1"`

	Aggregation Aggregation `toml:"aggregation" validate:"oneof=max sum"`
	Similarity  Similarity  `toml:"similarity" validate:"oneof=cosine dot"`
}

// AgentConfig holds research orchestrator policy.
type AgentConfig struct {
	MaxIterations   int `toml:"max_iterations" validate:"gte=1"`
	MaxSubQuestions int `toml:"max_sub_questions" validate:"gte=1"`
	EvidenceCap     int `toml:"evidence_cap" validate:"gte=1"`

	// GatherK is how many reranked candidates each GATHER keeps per tool.
	GatherK int `toml:"gather_k" validate:"gte=1"`

	// MinRelevance is the Candidate.Relevance a hit needs to count as
	// evidence when evaluating sufficiency.
	MinRelevance float64 `toml:"min_relevance" validate:"gte=0,lte=1"`

	// RecencyKeywords route a sub-question to web search.
	RecencyKeywords []string `toml:"recency_keywords"`

	// WebAlongsideInternal routes questions without recency cues to both
	// internal and web search at once, instead of internal first.
	WebAlongsideInternal bool `toml:"web_alongside_internal"`

	// CallTimeout bounds every external call.
	CallTimeout Duration `toml:"call_timeout"`

	// SynthesisRetries is how many times a failed generation is retried
	// before answering with insufficient information.
	SynthesisRetries int `toml:"synthesis_retries" validate:"gte=0,lte=3"`

	// Decompose enables LLM query decomposition when an LLM is configured.
	Decompose bool `toml:"decompose"`
}

// IngestConfig controls chunking and embedding during ingestion.
type IngestConfig struct {
	ChunkSize    int `toml:"chunk_size" validate:"gte=100"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`

	// EmbedBatchSize is how many chunks go into one embedding request.
	EmbedBatchSize int `toml:"embed_batch_size" validate:"gte=1"`

	// Workers sizes the embedding worker pool.
	Workers int `toml:"workers" validate:"gte=1"`
}

// StorageConfig selects the chunk store backend.
type StorageConfig struct {
	// DataDir holds the SQLite database. Defaults to ~/.sercha-ask/data.
	DataDir string `toml:"data_dir"`

	// Memory keeps everything in process memory.
	Memory bool `toml:"memory"`

	// DefaultSpace names the search space used when a command names none.
	// It is created on first use.
	DefaultSpace string `toml:"default_space"`
}

// PromptsConfig locates user-editable prompt templates.
type PromptsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// Config is the process-wide configuration. It is built once at startup
// and passed by value or pointer into component constructors; nothing
// mutates it afterwards.
type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Rerank    RerankConfig    `toml:"rerank"`
	WebSearch WebSearchConfig `toml:"websearch"`
	Search    SearchConfig    `toml:"search"`
	Agent     AgentConfig     `toml:"agent"`
	Ingest    IngestConfig    `toml:"ingest"`
	Storage   StorageConfig   `toml:"storage"`
	Prompts   PromptsConfig   `toml:"prompts"`
}

// DefaultRecencyKeywords are the cues that route a question to the web.
var DefaultRecencyKeywords = []string{
	"latest", "current", "currently", "today", "recent", "recently",
	"now", "this week", "this month", "this year", "news", "breaking",
	"upcoming", "yesterday",
}

// DefaultConfig returns a configuration that works without any provider.
func DefaultConfig() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Dimensions: 768,
			Timeout:    Duration{30 * time.Second},
		},
		LLM: LLMConfig{
			Timeout: Duration{120 * time.Second},
		},
		Rerank: RerankConfig{
			Provider: RerankProviderNone,
			Timeout:  Duration{30 * time.Second},
		},
		WebSearch: WebSearchConfig{
			MaxResults:        5,
			RequestsPerSecond: 2,
			GeminiModel:       "gemini-2.5-flash",
		},
		Search: SearchConfig{
			RRFK:          60,
			DenseWeight:   1,
			SparseWeight:  1,
			Overfetch:     3,
			MinCandidates: 20,
			Aggregation:   AggregationMax,
			Similarity:    SimilarityCosine,
		},
		Agent: AgentConfig{
			MaxIterations:    4,
			MaxSubQuestions:  3,
			EvidenceCap:      10,
			GatherK:          5,
			MinRelevance:     0.1,
			RecencyKeywords:  append([]string(nil), DefaultRecencyKeywords...),
			CallTimeout:      Duration{30 * time.Second},
			SynthesisRetries: 1,
			Decompose:        true,
		},
		Ingest: IngestConfig{
			ChunkSize:      1000,
			ChunkOverlap:   200,
			EmbedBatchSize: 32,
			Workers:        4,
		},
		Storage: StorageConfig{
			DefaultSpace: "default",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Every failure wraps ErrConfiguration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if c.Search.DenseWeight == 0 && c.Search.SparseWeight == 0 {
		return fmt.Errorf("%w: search weights cannot both be zero", ErrConfiguration)
	}
	if c.Embedding.IsConfigured() && c.Embedding.Provider.RequiresAPIKey() && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: embedding provider %s requires an API key", ErrConfiguration, c.Embedding.Provider)
	}
	if c.LLM.IsConfigured() && c.LLM.Provider.RequiresAPIKey() && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm provider %s requires an API key", ErrConfiguration, c.LLM.Provider)
	}
	if c.Rerank.Provider == RerankProviderLLM && !c.LLM.IsConfigured() {
		return fmt.Errorf("%w: llm reranker requires an llm provider", ErrConfiguration)
	}
	if c.Rerank.Provider == RerankProviderCohere && c.Rerank.APIKey == "" {
		return fmt.Errorf("%w: cohere reranker requires an API key", ErrConfiguration)
	}
	for _, p := range c.WebSearch.Providers {
		if err := c.WebSearch.checkKeys(p); err != nil {
			return err
		}
	}
	return nil
}

func (c WebSearchConfig) checkKeys(p WebProvider) error {
	var missing bool
	switch p {
	case WebProviderTavily:
		missing = c.TavilyAPIKey == ""
	case WebProviderSerper:
		missing = c.SerperAPIKey == ""
	case WebProviderGoogle:
		missing = c.GoogleAPIKey == "" || c.GoogleEngineID == ""
	case WebProviderGemini:
		missing = c.GeminiAPIKey == ""
	}
	if missing {
		return fmt.Errorf("%w: web provider %s is missing credentials", ErrConfiguration, p)
	}
	return nil
}
