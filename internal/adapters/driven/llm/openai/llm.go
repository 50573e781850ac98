// Package openai provides an LLM service adapter for the OpenAI chat
// completions API and compatible servers.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/openaicompat"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = openaicompat.DefaultBaseURL
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService answers prompts with the chat completions endpoint.
type LLMService struct {
	api   *openaicompat.Client
	model string
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatCompletionMsg `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api:   openaicompat.New("openai", cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		model: cfg.Model,
	}, nil
}

// Generate sends prompt as a single user message.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.complete(ctx, chatCompletionRequest{
		Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.StopWords,
	})
}

// Chat conducts a multi-turn conversation. Roles pass through unchanged.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	msgs := make([]chatCompletionMsg, len(messages))
	for i, m := range messages {
		msgs[i] = chatCompletionMsg{Role: m.Role, Content: m.Content}
	}
	return s.complete(ctx, chatCompletionRequest{
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
}

func (s *LLMService) complete(ctx context.Context, req chatCompletionRequest) (string, error) {
	req.Model = s.model

	var resp chatCompletionResponse
	if err := s.api.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the key against the /models endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
