package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
}

func routeState(question string, web bool, tried ...domain.Tool) *domain.AgentState {
	s := domain.NewAgentState(question, "s1", 4, 10, web)
	s.SubQuestions = []string{question}
	s.Tried = tried
	return s
}

func TestRecencyRoutingPolicy_Route(t *testing.T) {
	policy := NewRecencyRoutingPolicy(testAgentConfig()).WithClock(fixedClock())

	tests := []struct {
		name  string
		state *domain.AgentState
		want  domain.ToolSet
	}{
		{"internal first", routeState("how does our deploy pipeline work?", true),
			domain.ToolSet{domain.ToolInternalSearch}},
		{"recency goes to web", routeState("what is the latest Go release?", true),
			domain.ToolSet{domain.ToolWebSearch}},
		{"recent year goes to web", routeState("who won the 2025 final?", true),
			domain.ToolSet{domain.ToolWebSearch}},
		{"old year stays internal", routeState("what did we ship in 2019?", true),
			domain.ToolSet{domain.ToolInternalSearch}},
		{"recency without web", routeState("latest notes", false),
			domain.ToolSet{domain.ToolInternalSearch}},
		{"web after internal", routeState("deploy pipeline", true, domain.ToolInternalSearch),
			domain.ToolSet{domain.ToolWebSearch}},
		{"internal after recent web", routeState("latest deploy", true, domain.ToolWebSearch),
			domain.ToolSet{domain.ToolInternalSearch}},
		{"exhausted", routeState("deploy", true, domain.ToolInternalSearch, domain.ToolWebSearch), nil},
		{"exhausted without web", routeState("deploy", false, domain.ToolInternalSearch), nil},
		{"empty queue", domain.NewAgentState("q", "s1", 4, 10, true), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Route(tt.state))
		})
	}
}

func TestRecencyRoutingPolicy_Alongside(t *testing.T) {
	cfg := testAgentConfig()
	cfg.WebAlongsideInternal = true
	policy := NewRecencyRoutingPolicy(cfg).WithClock(fixedClock())

	assert.Equal(t,
		domain.ToolSet{domain.ToolInternalSearch, domain.ToolWebSearch},
		policy.Route(routeState("deploy pipeline", true)))
	assert.Equal(t,
		domain.ToolSet{domain.ToolInternalSearch},
		policy.Route(routeState("deploy pipeline", false)))
}

func TestRecencyRoutingPolicy_IsPure(t *testing.T) {
	policy := NewRecencyRoutingPolicy(testAgentConfig()).WithClock(fixedClock())
	state := routeState("deploy pipeline", true)

	first := policy.Route(state)
	second := policy.Route(state)

	assert.Equal(t, first, second)
	assert.Empty(t, state.Tried)
	assert.Empty(t, state.Selected)
}

func TestRecencyRoutingPolicy_ConfiguredKeywords(t *testing.T) {
	cfg := testAgentConfig()
	cfg.RecencyKeywords = []string{"  Stock Price ", ""}
	policy := NewRecencyRoutingPolicy(cfg).WithClock(fixedClock())

	assert.True(t, policy.IsRecent("what is the stock price of acme"))
	assert.False(t, policy.IsRecent("what is the latest plan"), "defaults are replaced")
}

func TestRecencyRoutingPolicy_IsRecent_WordBoundaries(t *testing.T) {
	policy := NewRecencyRoutingPolicy(testAgentConfig()).WithClock(fixedClock())

	assert.True(t, policy.IsRecent("What's new right now?"))
	assert.False(t, policy.IsRecent("do you know the answer"), "'now' inside 'know'")
	assert.True(t, policy.IsRecent("news about the launch"))
	assert.False(t, policy.IsRecent("newsletter archive"))
}

func TestRoutingPolicyFunc(t *testing.T) {
	policy := RoutingPolicyFunc(func(*domain.AgentState) domain.ToolSet {
		return domain.ToolSet{domain.ToolWebSearch}
	})
	assert.Equal(t, domain.ToolSet{domain.ToolWebSearch}, policy.Route(nil))
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, containsPhrase("this week in go", "this week"))
	assert.False(t, containsPhrase("this weekend", "this week"))
	assert.True(t, containsPhrase("know now", "now"))
}
