// Package ollama implements driven.LLMService against a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/ollamaapi"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = ollamaapi.DefaultBaseURL
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures NewLLMService. Zero fields take the defaults above.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService sends both Generate and Chat through /api/chat.
type LLMService struct {
	api   *ollamaapi.Client
	model string
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   ollamaapi.New(cfg.BaseURL, cfg.Timeout),
		model: cfg.Model,
	}
}

// Generate sends prompt as a single user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.chat(ctx, []chatMessage{{Role: driven.RoleUser, Content: prompt}}, &options{
		NumPredict:  opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.StopWords,
	})
}

func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	turns := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, chatMessage(m))
	}
	return s.chat(ctx, turns, &options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature})
}

func (s *LLMService) chat(ctx context.Context, turns []chatMessage, opts *options) (string, error) {
	req := chatRequest{Model: s.model, Messages: turns, Options: opts}

	var resp chatResponse
	if err := s.api.Post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Message.Content, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the server is reachable and the model is pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, s.model)
}

func (s *LLMService) Close() error {
	return nil
}
