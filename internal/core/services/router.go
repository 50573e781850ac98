package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// RoutingPolicy decides which tools to invoke for the head sub-question.
// Implementations must be pure functions of the state: no I/O and no
// mutation. An empty set means nothing is left to try for this question.
type RoutingPolicy interface {
	Route(state *domain.AgentState) domain.ToolSet
}

// RoutingPolicyFunc adapts a function to RoutingPolicy.
type RoutingPolicyFunc func(state *domain.AgentState) domain.ToolSet

// Route calls f(state).
func (f RoutingPolicyFunc) Route(state *domain.AgentState) domain.ToolSet {
	return f(state)
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// RecencyRoutingPolicy sends questions with recency or date cues to the
// web and everything else to the internal index first. Once a tool has
// been tried for a question, the other one is offered next.
type RecencyRoutingPolicy struct {
	keywords  []string
	alongside bool
	now       func() time.Time
}

// NewRecencyRoutingPolicy creates a policy from agent configuration.
func NewRecencyRoutingPolicy(cfg domain.AgentConfig) *RecencyRoutingPolicy {
	keywords := make([]string, 0, len(cfg.RecencyKeywords))
	for _, k := range cfg.RecencyKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &RecencyRoutingPolicy{
		keywords:  keywords,
		alongside: cfg.WebAlongsideInternal,
		now:       time.Now,
	}
}

// WithClock returns a copy of the policy that reads the year from now.
func (p *RecencyRoutingPolicy) WithClock(now func() time.Time) *RecencyRoutingPolicy {
	cp := *p
	cp.now = now
	return &cp
}

// Route implements RoutingPolicy.
func (p *RecencyRoutingPolicy) Route(state *domain.AgentState) domain.ToolSet {
	question := state.Head()
	if question == "" {
		return nil
	}

	internalOpen := !state.Tried.Has(domain.ToolInternalSearch)
	webOpen := state.WebEnabled && !state.Tried.Has(domain.ToolWebSearch)

	switch {
	case webOpen && p.IsRecent(question):
		return domain.ToolSet{domain.ToolWebSearch}
	case internalOpen && webOpen && p.alongside:
		return domain.ToolSet{domain.ToolInternalSearch, domain.ToolWebSearch}
	case internalOpen:
		return domain.ToolSet{domain.ToolInternalSearch}
	case webOpen:
		return domain.ToolSet{domain.ToolWebSearch}
	default:
		return nil
	}
}

// IsRecent reports whether question asks for current or date-bound content:
// a recency keyword, or a year no older than last year.
func (p *RecencyRoutingPolicy) IsRecent(question string) bool {
	q := strings.ToLower(question)
	for _, k := range p.keywords {
		if containsPhrase(q, k) {
			return true
		}
	}

	thisYear := p.now().Year()
	for _, y := range yearPattern.FindAllString(q, -1) {
		if year, err := strconv.Atoi(y); err == nil && year >= thisYear-1 {
			return true
		}
	}
	return false
}

// containsPhrase matches phrase on word boundaries.
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
