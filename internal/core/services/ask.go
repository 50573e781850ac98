package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// Ensure AskService implements PromptStoreAware.
var _ driven.PromptStoreAware = (*AskService)(nil)

const defaultCondensePrompt = `Given the conversation so far and a follow-up question, rewrite the follow-up
as a standalone question that can be understood without the conversation.
Reply with the standalone question only.`

// maxHistoryTurns bounds how much chat history is sent for condensing.
const maxHistoryTurns = 10

// AskService is the chat endpoint: it validates the request, condenses
// chat history into a standalone question, sizes the budget for the
// requested depth, and runs the orchestrator.
type AskService struct {
	cfg          domain.AgentConfig
	orchestrator *Orchestrator
	spaces       driven.DocumentStore
	llm          driven.LLMService
	promptStore  driven.PromptStore
}

// NewAskService creates an ask service. spaces and llm may be nil.
func NewAskService(
	cfg domain.AgentConfig,
	orchestrator *Orchestrator,
	spaces driven.DocumentStore,
	llm driven.LLMService,
) *AskService {
	return &AskService{
		cfg:          cfg,
		orchestrator: orchestrator,
		spaces:       spaces,
		llm:          llm,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *AskService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Ask implements driving.AskService.
func (s *AskService) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	logger.Section("Ask")

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if req.SearchSpaceID == "" {
		return nil, fmt.Errorf("%w: search space is required", domain.ErrInvalidInput)
	}
	var missingSpace error
	if s.spaces != nil {
		if _, err := s.spaces.GetSpace(ctx, req.SearchSpaceID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("search space %s: %w", req.SearchSpaceID, err)
			}
			logger.Warn("Search space %s not found, searching an empty scope", req.SearchSpaceID)
			missingSpace = err
		}
	}

	depth := req.Depth
	if depth == "" {
		depth = domain.DepthGeneral
	}
	if !depth.IsValid() {
		return nil, fmt.Errorf("%w: unknown research depth %q", domain.ErrInvalidInput, depth)
	}
	budget := depth.Budget(s.cfg)
	logger.Debug("Depth %s: max iterations %d, sub-questions %d, evidence cap %d",
		depth, budget.MaxIterations, budget.MaxSubQuestions, budget.EvidenceCap)

	webEnabled := s.orchestrator.WebEnabled() && !req.DisableWeb
	state := domain.NewAgentState(query, req.SearchSpaceID, budget.MaxIterations, budget.EvidenceCap, webEnabled)
	if missingSpace != nil {
		state.Log(domain.ToolCall{
			ID:          uuid.New().String(),
			Tool:        toolScope,
			SubQuestion: query,
			At:          time.Now(),
			Status:      domain.ToolCallDegraded,
			Detail:      fmt.Sprintf("search space %s: %v", req.SearchSpaceID, missingSpace),
		})
	}

	if len(req.History) > 0 && s.llm != nil {
		state.OriginalQuery = s.condense(ctx, state, query, req.History)
	}

	return s.orchestrator.Run(ctx, state, budget)
}

// condense rewrites a follow-up into a standalone question. Failures keep
// the original and are logged as a degraded call.
func (s *AskService) condense(
	ctx context.Context, state *domain.AgentState, query string, history []domain.ChatMessage,
) string {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	system := defaultCondensePrompt
	if s.promptStore != nil {
		if p, err := s.promptStore.Load(driven.PromptCondense); err == nil && p != "" {
			system = p
		}
	}

	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, driven.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, driven.ChatMessage{Role: "user", Content: "Follow-up question: " + query})

	callCtx := ctx
	if s.cfg.CallTimeout.Duration > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout.Duration)
		defer cancel()
	}

	start := time.Now()
	rewritten, err := s.llm.Chat(callCtx, messages, driven.ChatOptions{MaxTokens: 128})
	rewritten = strings.Trim(strings.TrimSpace(rewritten), `"`)

	call := domain.ToolCall{
		ID:          uuid.New().String(),
		Tool:        toolCondense,
		SubQuestion: query,
		Duration:    time.Since(start),
		At:          start,
	}
	if err != nil || rewritten == "" {
		if err == nil {
			err = errors.New("empty rewrite")
		}
		logger.Warn("Condensing chat history failed, using the question as asked: %v", err)
		call.Status = domain.ToolCallDegraded
		call.Detail = err.Error()
		state.Log(call)
		return query
	}

	logger.Info("Standalone question: %q", rewritten)
	call.Status = domain.ToolCallOK
	call.Results = 1
	state.Log(call)
	return rewritten
}
