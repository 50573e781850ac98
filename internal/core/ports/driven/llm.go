package driven

import "context"

// Chat roles understood by every LLMService.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMService is the text generation backend behind query condensing,
// decomposition, LLM reranking and answer synthesis. A nil LLMService is
// valid: each of those stages has a non-generative fallback.
type LLMService interface {
	// Generate completes a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat completes a conversation. Messages are oldest first.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	ModelName() string

	// Ping makes the cheapest request the provider offers. A failure marks
	// the provider unreachable at startup.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions tunes a Generate call. Zero values mean provider defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	StopWords   []string
}

// ChatMessage is one turn of a conversation sent to Chat.
type ChatMessage struct {
	Role    string // RoleSystem, RoleUser or RoleAssistant
	Content string
}

// ChatOptions tunes a Chat call. Zero values mean provider defaults.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}
