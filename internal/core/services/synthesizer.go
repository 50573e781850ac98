package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Ensure Synthesizer implements PromptStoreAware.
var _ driven.PromptStoreAware = (*Synthesizer)(nil)

const defaultSynthesizePrompt = `You are a research assistant. Answer the question using only the numbered sources below.
Cite every claim with its source number in square brackets, for example [1] or [2][3].
Do not cite a number that is not listed. If the sources do not answer the question, say so.

Sources:
%s
Question: %s

Answer:`

// extractiveSentences is how many evidence items an answer built without
// an LLM quotes.
const extractiveSentences = 3

var (
	markerPattern     = regexp.MustCompile(`\[(\d+)\]`)
	markerListPattern = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)+)\]`)
	spaceBeforePunct  = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	repeatedSpaces    = regexp.MustCompile(`[ \t]{2,}`)
)

// Synthesis is the synthesizer's output.
type Synthesis struct {
	Text         string
	Citations    []domain.Citation
	Insufficient bool

	// Attempts is the number of generation calls made.
	Attempts int

	// Stripped counts citation markers removed because they matched no evidence.
	Stripped int
}

// Synthesizer turns an evidence set into a cited answer.
type Synthesizer struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	retries     int
	timeout     time.Duration
}

// NewSynthesizer creates a synthesizer. With a nil LLM, answers are built
// extractively from the top evidence.
func NewSynthesizer(llm driven.LLMService, retries int, timeout time.Duration) *Synthesizer {
	if retries < 0 {
		retries = 0
	}
	return &Synthesizer{llm: llm, retries: retries, timeout: timeout}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *Synthesizer) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Synthesize answers query from evidence, binding the i-th evidence item to
// marker [i+1]. Empty evidence yields the insufficient-information answer
// without generation.
//
// If every generation attempt fails, the insufficient-information answer is
// returned along with an error wrapping ErrSynthesisFailure.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence []domain.Candidate) (*Synthesis, error) {
	logger.Section("Answer Synthesis")
	logger.Debug("Evidence items: %d", len(evidence))

	if len(evidence) == 0 {
		logger.Info("No evidence, answering with insufficient information")
		return insufficient(0), nil
	}

	if s.llm == nil {
		text := extractiveAnswer(evidence)
		syn := finalise(text, evidence)
		logger.Info("No LLM configured, built extractive answer with %d citations", len(syn.Citations))
		return syn, nil
	}

	prompt := fmt.Sprintf(s.loadPrompt(driven.PromptSynthesize, defaultSynthesizePrompt),
		formatEvidence(evidence), query)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= s.retries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempts++

		text, err := s.generate(ctx, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty generation")
		}
		if err != nil {
			logger.Warn("Generation attempt %d failed: %v", attempts, err)
			lastErr = err
			continue
		}

		syn := finalise(text, evidence)
		syn.Attempts = attempts
		if syn.Stripped > 0 {
			logger.Warn("Stripped %d unmatched citation markers", syn.Stripped)
		}
		logger.Info("Synthesized answer with %d citations", len(syn.Citations))
		return syn, nil
	}

	logger.Error("Synthesis failed after %d attempts: %v", attempts, lastErr)
	return insufficient(attempts), fmt.Errorf("%w: %w", domain.ErrSynthesisFailure, lastErr)
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 1024, Temperature: 0.2})
}

func (s *Synthesizer) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil || prompt == "" {
		return fallback
	}
	return prompt
}

func insufficient(attempts int) *Synthesis {
	return &Synthesis{
		Text:         domain.InsufficientInformation,
		Citations:    []domain.Citation{},
		Insufficient: true,
		Attempts:     attempts,
	}
}

// formatEvidence renders evidence as numbered source blocks.
func formatEvidence(evidence []domain.Candidate) string {
	var b strings.Builder
	for i, c := range evidence {
		fmt.Fprintf(&b, "[%d]", i+1)
		if c.Title != "" {
			fmt.Fprintf(&b, " %s", c.Title)
		}
		if c.SourceRef.URL != "" {
			fmt.Fprintf(&b, " (%s)", c.SourceRef.URL)
		}
		fmt.Fprintf(&b, "\n%s\n\n", strings.TrimSpace(c.Content))
	}
	return b.String()
}

// extractiveAnswer quotes the lead sentence of the top evidence items.
func extractiveAnswer(evidence []domain.Candidate) string {
	var parts []string
	for i, c := range evidence {
		if i >= extractiveSentences {
			break
		}
		lead := ""
		if len(c.Highlights) > 0 {
			lead = c.Highlights[0]
		} else if sentences := splitSentences(c.Content); len(sentences) > 0 {
			lead = truncateRunes(sentences[0], 300)
		}
		if lead == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s [%d]", lead, i+1))
	}
	return strings.Join(parts, " ")
}

// finalise strips markers that match no evidence item and builds the
// citation list from the markers that remain.
func finalise(text string, evidence []domain.Candidate) *Synthesis {
	text = markerListPattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := strings.Trim(m, "[]")
		var b strings.Builder
		for _, n := range strings.Split(inner, ",") {
			fmt.Fprintf(&b, "[%s]", strings.TrimSpace(n))
		}
		return b.String()
	})

	stripped := 0
	cited := make(map[int]bool)
	text = markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > len(evidence) {
			stripped++
			return ""
		}
		cited[n] = true
		return m
	})

	if stripped > 0 {
		text = spaceBeforePunct.ReplaceAllString(text, "$1")
		text = repeatedSpaces.ReplaceAllString(text, " ")
	}

	markers := make([]int, 0, len(cited))
	for n := range cited {
		markers = append(markers, n)
	}
	sort.Ints(markers)

	citations := make([]domain.Citation, 0, len(markers))
	for _, n := range markers {
		citations = append(citations, domain.Citation{Marker: n, Candidate: evidence[n-1]})
	}

	return &Synthesis{
		Text:      strings.TrimSpace(text),
		Citations: citations,
		Stripped:  stripped,
	}
}
