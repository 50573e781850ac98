package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// rerankPoolFactor widens retrieval when a rerank is requested.
const rerankPoolFactor = 2

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to find documents"`
	Space  string `json:"space,omitempty" jsonschema:"search space ID or name (defaults to the configured space)"`
	Mode   string `json:"mode,omitempty" jsonschema:"chunk or document (default chunk)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Rerank bool   `json:"rerank,omitempty" jsonschema:"reorder results with the configured reranker"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`

	// Reranked reports whether the reranker's order was applied.
	Reranked bool `json:"reranked"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Ref        string   `json:"ref"`
	DocumentID string   `json:"document_id,omitempty"`
	Title      string   `json:"title"`
	Score      float64  `json:"score"`
	Relevance  float64  `json:"relevance"`
	Highlights []string `json:"highlights,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query   string           `json:"query" jsonschema:"the question to answer"`
	Space   string           `json:"space,omitempty" jsonschema:"search space ID or name (defaults to the configured space)"`
	Depth   string           `json:"depth,omitempty" jsonschema:"GENERAL, DEEP, DEEPER or DEEPEST (default GENERAL)"`
	History []HistoryMessage `json:"history,omitempty" jsonschema:"earlier conversation turns, oldest first"`
	NoWeb   bool             `json:"no_web,omitempty" jsonschema:"disable web search for this question"`
}

// HistoryMessage is one earlier conversation turn.
type HistoryMessage struct {
	Role    string `json:"role" jsonschema:"user or assistant"`
	Content string `json:"content"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string           `json:"answer"`
	Citations    []CitationOutput `json:"citations"`
	Insufficient bool             `json:"insufficient"`
	FinalStep    string           `json:"final_step"`
	ToolCalls    []ToolCallOutput `json:"tool_call_log"`
}

// CitationOutput maps an answer marker to its source.
type CitationOutput struct {
	Marker     int    `json:"marker"`
	Ref        string `json:"ref"`
	DocumentID string `json:"document_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title"`
	Provenance string `json:"provenance"`
}

// ToolCallOutput is one entry of the research log.
type ToolCallOutput struct {
	Iteration   int    `json:"iteration"`
	SubQuestion string `json:"sub_question,omitempty"`
	Tool        string `json:"tool"`
	Status      string `json:"status"`
	Results     int    `json:"results"`
	Detail      string `json:"detail,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid keyword and semantic search over one search space",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask",
		Description: "Answer a question from the knowledge base and, when enabled, the web. " +
			"The answer cites its sources with [n] markers.",
	}, s.handleAsk)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	spaceID, err := s.resolveSpace(ctx, input.Space)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{
		SearchSpaceID: spaceID,
		Limit:         limit,
		Mode:          domain.SearchMode(strings.ToLower(input.Mode)),
	}
	if input.Rerank {
		opts.Limit = limit * rerankPoolFactor
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if errors.Is(err, domain.ErrRetrievalUnavailable) {
		logger.Warn("Dense retrieval unavailable, retrying keyword only: %v", err)
		opts.SparseOnly = true
		results, err = s.ports.Search.Search(ctx, input.Query, opts)
	}
	if err != nil {
		return nil, SearchOutput{}, err
	}

	reranked := false
	if input.Rerank {
		results, reranked = s.rerank(ctx, input.Query, results, limit)
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(results)),
		Count:    len(results),
		Reranked: reranked,
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			Ref:        results[i].SourceRef.String(),
			DocumentID: results[i].SourceRef.DocumentID,
			Title:      results[i].Title,
			Score:      results[i].Score,
			Relevance:  results[i].Relevance,
			Highlights: results[i].Highlights,
			Content:    results[i].Content,
		}
	}

	return nil, output, nil
}

// rerank reorders results and keeps the top k. It reports whether the
// reranker's order was used.
func (s *Server) rerank(
	ctx context.Context, query string, results []domain.Candidate, k int,
) ([]domain.Candidate, bool) {
	if k > len(results) {
		k = len(results)
	}
	if s.ports.Rerank == nil || !s.ports.Rerank.Enabled() {
		logger.Warn("Rerank requested but no reranker is configured")
		return results[:k], false
	}
	reranked, err := s.ports.Rerank.Rerank(ctx, query, results, k)
	if err != nil {
		logger.Warn("Rerank failed, keeping fused order: %v", err)
		return reranked, false
	}
	return reranked, true
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	spaceID, err := s.resolveSpace(ctx, input.Space)
	if err != nil {
		return nil, AskOutput{}, err
	}

	depth := domain.ResearchDepth(strings.ToUpper(strings.TrimSpace(input.Depth)))
	if depth == "" {
		depth = domain.DepthGeneral
	}
	if !depth.IsValid() {
		return nil, AskOutput{}, fmt.Errorf("%w: unknown depth %q", domain.ErrInvalidInput, input.Depth)
	}

	history := make([]domain.ChatMessage, 0, len(input.History))
	for _, m := range input.History {
		role := domain.Role(strings.ToLower(m.Role))
		if role != domain.RoleUser && role != domain.RoleAssistant {
			return nil, AskOutput{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, m.Role)
		}
		history = append(history, domain.ChatMessage{Role: role, Content: m.Content})
	}

	answer, err := s.ports.Ask.Ask(ctx, domain.AskRequest{
		Query:         input.Query,
		SearchSpaceID: spaceID,
		History:       history,
		Depth:         depth,
		DisableWeb:    input.NoWeb,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, answerOutput(answer), nil
}

// resolveSpace maps a space name or ID to an ID.
func (s *Server) resolveSpace(ctx context.Context, space string) (string, error) {
	space = strings.TrimSpace(space)
	if space == "" {
		space = s.ports.DefaultSpace
	}
	if space == "" {
		return "", fmt.Errorf("%w: space is required", domain.ErrInvalidInput)
	}
	if s.ports.Spaces == nil {
		return space, nil
	}
	found, err := s.ports.Spaces.Get(ctx, space)
	if err != nil {
		return "", fmt.Errorf("space %q: %w", space, err)
	}
	return found.ID, nil
}

func answerOutput(answer *domain.Answer) AskOutput {
	out := AskOutput{
		Answer:       answer.Text,
		Citations:    make([]CitationOutput, len(answer.Citations)),
		Insufficient: answer.Insufficient,
		FinalStep:    answer.FinalStep.String(),
		ToolCalls:    make([]ToolCallOutput, len(answer.ToolCallLog)),
	}
	for i, c := range answer.Citations {
		ref := c.Candidate.SourceRef
		out.Citations[i] = CitationOutput{
			Marker:     c.Marker,
			Ref:        ref.String(),
			DocumentID: ref.DocumentID,
			URL:        ref.URL,
			Title:      c.Candidate.Title,
			Provenance: string(c.Candidate.Provenance),
		}
	}
	for i, call := range answer.ToolCallLog {
		out.ToolCalls[i] = ToolCallOutput{
			Iteration:   call.Iteration,
			SubQuestion: call.SubQuestion,
			Tool:        call.Tool,
			Status:      string(call.Status),
			Results:     call.Results,
			Detail:      call.Detail,
			DurationMS:  call.Duration.Milliseconds(),
		}
	}
	return out
}
