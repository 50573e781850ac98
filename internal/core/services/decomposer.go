package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Decomposer splits a question into an ordered queue of sub-questions.
type Decomposer interface {
	// Decompose returns between 1 and limit sub-questions. On error it still
	// returns a usable queue.
	Decompose(ctx context.Context, question string, limit int) ([]string, error)
}

// SingleQuestionDecomposer keeps the question whole.
type SingleQuestionDecomposer struct{}

// Decompose implements Decomposer.
func (SingleQuestionDecomposer) Decompose(_ context.Context, question string, _ int) ([]string, error) {
	return []string{strings.TrimSpace(question)}, nil
}

const defaultDecomposePrompt = `Break the user's question into at most %d self-contained search questions that together answer it.
Put one question per line with no numbering or commentary.
If the question is already simple, return it unchanged on a single line.

Question: %s`

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// LLMDecomposer asks the LLM for sub-questions.
type LLMDecomposer struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	timeout     time.Duration
}

// Ensure LLMDecomposer implements PromptStoreAware.
var _ driven.PromptStoreAware = (*LLMDecomposer)(nil)

// NewLLMDecomposer creates a decomposer backed by llm.
func NewLLMDecomposer(llm driven.LLMService, timeout time.Duration) *LLMDecomposer {
	return &LLMDecomposer{llm: llm, timeout: timeout}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (d *LLMDecomposer) SetPromptStore(store driven.PromptStore) {
	d.promptStore = store
}

// Decompose implements Decomposer. Generation failures fall back to the
// original question.
func (d *LLMDecomposer) Decompose(ctx context.Context, question string, limit int) ([]string, error) {
	question = strings.TrimSpace(question)
	if limit <= 1 {
		return []string{question}, nil
	}

	template := defaultDecomposePrompt
	if d.promptStore != nil {
		if p, err := d.promptStore.Load(driven.PromptDecompose); err == nil && p != "" {
			template = p
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	text, err := d.llm.Generate(ctx, fmt.Sprintf(template, limit, question), driven.GenerateOptions{
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return []string{question}, fmt.Errorf("decompose: %w", err)
	}

	subs := parseSubQuestions(text, limit)
	if len(subs) == 0 {
		return []string{question}, nil
	}
	return subs, nil
}

// parseSubQuestions reads one question per line, dropping list markers,
// blanks and duplicates, and keeps at most limit.
func parseSubQuestions(text string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}
