// Package anthropic provides an LLM service adapter using the Anthropic
// Messages API through the official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL overrides the API base URL. Empty uses the SDK default.
	BaseURL string

	// Model is the LLM model to use (default: claude-sonnet-4-5).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides LLM operations using the Anthropic API.
type LLMService struct {
	client anthropic.Client
	model  string
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMService{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	params := s.params(opts.MaxTokens, opts.Temperature)
	params.Messages = []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}
	return s.send(ctx, params)
}

// Chat conducts a multi-turn conversation. System messages are lifted into
// the request's system prompt.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	params := s.params(opts.MaxTokens, opts.Temperature)

	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if len(params.Messages) == 0 {
		return "", fmt.Errorf("anthropic: chat needs at least one user or assistant message")
	}

	return s.send(ctx, params)
}

func (s *LLMService) params(maxTokens int, temperature float64) anthropic.MessageNewParams {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	return params
}

func (s *LLMService) send(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text in response")
	}
	return text.String(), nil
}

// mapError turns rate limiting into a QuotaError and wraps everything else.
func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		quota := &driven.QuotaError{Provider: "anthropic"}
		if apiErr.Response != nil {
			if secs, perr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After")); perr == nil && secs > 0 {
				quota.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return quota
	}
	return fmt.Errorf("anthropic: %w", err)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key and model with a one-token request.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", mapError(err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
