// Package llm provides a reranker that grades passages with a generation
// model. It is used when no dedicated rerank service is configured.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

var (
	_ driven.Reranker         = (*Reranker)(nil)
	_ driven.PromptStoreAware = (*Reranker)(nil)
)

const defaultRerankPrompt = `Rate how well the passage answers the query on a scale from 0 to 10.
Reply with the number only.

Query: %s

Passage: %s`

// DefaultConcurrency bounds parallel grading calls.
const DefaultConcurrency = 4

// maxPassageRunes trims long passages before grading.
const maxPassageRunes = 2000

var gradePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Reranker scores each passage with one LLM call.
type Reranker struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	concurrency int
	timeout     time.Duration
}

// New creates an LLM reranker. A non-positive timeout leaves calls bounded
// only by the caller's context.
func New(llm driven.LLMService, timeout time.Duration) *Reranker {
	return &Reranker{llm: llm, concurrency: DefaultConcurrency, timeout: timeout}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (r *Reranker) SetPromptStore(store driven.PromptStore) {
	r.promptStore = store
}

// Score grades every document in parallel and maps grades into [0, 1].
// Any failed or unparsable grade fails the whole call.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	template := defaultRerankPrompt
	if r.promptStore != nil {
		if p, err := r.promptStore.Load(driven.PromptRerank); err == nil && p != "" {
			template = p
		}
	}

	scores := make([]float64, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			grade, err := r.grade(gctx, fmt.Sprintf(template, query, truncate(doc, maxPassageRunes)))
			if err != nil {
				return fmt.Errorf("grading passage %d: %w", i, err)
			}
			scores[i] = grade
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *Reranker) grade(ctx context.Context, prompt string) (float64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 8, Temperature: 0})
	if err != nil {
		return 0, err
	}
	return parseGrade(text)
}

// parseGrade reads the first number in text as a 0-10 grade.
func parseGrade(text string) (float64, error) {
	m := gradePattern.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no grade in %q", text)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return min(max(v, 0), 10) / 10, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Name identifies the provider.
func (r *Reranker) Name() string {
	return "llm:" + r.llm.ModelName()
}
