package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// InternalSearcher is the hybrid search capability the orchestrator uses.
type InternalSearcher interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Candidate, error)
}

// WebSearcher is the web search capability the orchestrator uses.
type WebSearcher interface {
	Enabled() bool
	MaxResults() int
	SearchWeb(ctx context.Context, query string, maxResults int) ([]domain.Candidate, error)
}

// CandidateReranker reorders candidates. It must return a usable slice even
// when it also returns an error.
type CandidateReranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, k int) ([]domain.Candidate, error)
}

// AnswerSynthesizer builds the final answer. It must return a usable
// synthesis even when it also returns an error.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, evidence []domain.Candidate) (*Synthesis, error)
}

// Tool names used in the tool call log for non-retrieval stages.
const (
	toolDecompose  = "decompose"
	toolRerank     = "rerank"
	toolSynthesize = "synthesize"
	toolCondense   = "condense"
	toolScope      = "scope"
)

// transitions is the orchestrator's state machine. CANCELLED is reachable
// from every non-terminal state and is not listed.
var transitions = map[domain.AgentStep][]domain.AgentStep{
	domain.StepDecompose:  {domain.StepRoute},
	domain.StepRoute:      {domain.StepGather, domain.StepSynthesize},
	domain.StepGather:     {domain.StepEvaluate},
	domain.StepEvaluate:   {domain.StepRoute, domain.StepSynthesize},
	domain.StepSynthesize: {domain.StepDone},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to domain.AgentStep) bool {
	if from.IsTerminal() {
		return false
	}
	if to == domain.StepCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Orchestrator drives one research run per call over an AgentState.
// It holds no per-run state, so one instance serves concurrent queries.
type Orchestrator struct {
	search     InternalSearcher
	web        WebSearcher
	rerank     CandidateReranker
	synth      AnswerSynthesizer
	decomposer Decomposer
	policy     RoutingPolicy
	timeout    time.Duration
}

// NewOrchestrator creates an orchestrator. web, rerank and decomposer may
// be nil. A nil policy uses RecencyRoutingPolicy with default keywords.
func NewOrchestrator(
	search InternalSearcher,
	web WebSearcher,
	rerank CandidateReranker,
	synth AnswerSynthesizer,
	decomposer Decomposer,
	policy RoutingPolicy,
	callTimeout time.Duration,
) *Orchestrator {
	if decomposer == nil {
		decomposer = SingleQuestionDecomposer{}
	}
	if policy == nil {
		policy = NewRecencyRoutingPolicy(domain.DefaultConfig().Agent)
	}
	return &Orchestrator{
		search:     search,
		web:        web,
		rerank:     rerank,
		synth:      synth,
		decomposer: decomposer,
		policy:     policy,
		timeout:    callTimeout,
	}
}

// WebEnabled reports whether a web searcher is available.
func (o *Orchestrator) WebEnabled() bool {
	return o.web != nil && o.web.Enabled()
}

// run is the per-query context handed to step handlers.
type run struct {
	state  *domain.AgentState
	budget domain.AgentConfig
	answer *Synthesis
	log    logger.Scope
}

type stepFunc func(ctx context.Context, r *run) domain.AgentStep

// Run drives state from DECOMPOSE to DONE or CANCELLED. Cancellation is
// checked between states. A cancelled run returns partial evidence, no
// answer text, and ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, state *domain.AgentState, budget domain.AgentConfig) (*domain.Answer, error) {
	runID := uuid.New().String()[:8]
	r := &run{state: state, budget: budget, log: logger.For("run " + runID)}

	handlers := map[domain.AgentStep]stepFunc{
		domain.StepDecompose:  o.decompose,
		domain.StepRoute:      o.route,
		domain.StepGather:     o.gather,
		domain.StepEvaluate:   o.evaluate,
		domain.StepSynthesize: o.synthesize,
	}

	r.log.Info("Research started: %q (max iterations %d)", state.OriginalQuery, state.MaxIterations)

	for !state.Step.IsTerminal() {
		if ctx.Err() != nil {
			r.log.Warn("Cancelled in %s", state.Step)
			state.Step = domain.StepCancelled
			break
		}

		handler, ok := handlers[state.Step]
		if !ok {
			return nil, fmt.Errorf("no handler for state %s", state.Step)
		}

		next := handler(ctx, r)
		if !CanTransition(state.Step, next) {
			return nil, fmt.Errorf("illegal transition %s -> %s", state.Step, next)
		}
		r.log.Debug("%s -> %s", state.Step, next)
		state.Step = next
	}

	answer := &domain.Answer{
		ToolCallLog: state.ToolCallLog,
		FinalStep:   state.Step,
		Evidence:    state.Evidence.Items(),
	}

	if state.Step == domain.StepCancelled {
		return answer, ctx.Err()
	}

	answer.Text = r.answer.Text
	answer.Citations = r.answer.Citations
	answer.Insufficient = r.answer.Insufficient
	r.log.Info("Research done after %d iterations, %d citations", state.Iteration, len(answer.Citations))
	return answer, nil
}

// decompose fills the sub-question queue.
func (o *Orchestrator) decompose(ctx context.Context, r *run) domain.AgentStep {
	s := r.state
	limit := r.budget.MaxSubQuestions
	if limit < 1 {
		limit = 1
	}

	if !r.budget.Decompose {
		s.SubQuestions = []string{s.OriginalQuery}
		return domain.StepRoute
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	subs, err := o.decomposer.Decompose(callCtx, s.OriginalQuery, limit)
	if len(subs) == 0 {
		subs = []string{s.OriginalQuery}
	}
	if len(subs) > limit {
		subs = subs[:limit]
	}
	s.SubQuestions = subs

	if err != nil {
		r.log.Warn("Decomposition failed, keeping original question: %v", err)
		s.Log(o.record(toolDecompose, start, domain.ToolCallDegraded, len(subs), err.Error()))
	} else if len(subs) > 1 {
		s.Log(o.record(toolDecompose, start, domain.ToolCallOK, len(subs), ""))
	}
	r.log.Info("Sub-questions: %q", subs)

	return domain.StepRoute
}

// route picks tools for the head sub-question, popping questions that have
// nothing left to try.
func (o *Orchestrator) route(_ context.Context, r *run) domain.AgentStep {
	s := r.state
	if s.BudgetExhausted() {
		r.log.Info("Iteration budget exhausted, synthesizing")
		return domain.StepSynthesize
	}

	for s.Head() != "" {
		tools := o.policy.Route(s)
		if !s.WebEnabled {
			tools = tools.Without(domain.ToolWebSearch)
		}
		if len(tools) > 0 {
			s.Selected = tools
			r.log.Info("Route %q -> %v", s.Head(), tools)
			return domain.StepGather
		}
		r.log.Debug("Nothing left to try for %q", s.Head())
		s.PopSubQuestion()
	}

	return domain.StepSynthesize
}

// toolOutcome is what one tool produced during GATHER.
type toolOutcome struct {
	tool       domain.Tool
	candidates []domain.Candidate
	calls      []domain.ToolCall
}

// gather runs the selected tools concurrently, reranks their combined
// output and admits relevant candidates to the evidence set.
func (o *Orchestrator) gather(ctx context.Context, r *run) domain.AgentStep {
	s := r.state
	s.Iteration++
	question := s.Head()

	outcomes := make([]toolOutcome, len(s.Selected))
	var g errgroup.Group
	for i, tool := range s.Selected {
		g.Go(func() error {
			switch tool {
			case domain.ToolInternalSearch:
				outcomes[i] = o.internalSearch(ctx, r, question)
			case domain.ToolWebSearch:
				outcomes[i] = o.webSearch(ctx, r, question)
			default:
				outcomes[i] = toolOutcome{tool: tool, calls: []domain.ToolCall{
					o.record(string(tool), time.Now(), domain.ToolCallFailed, 0, "unknown tool"),
				}}
			}
			return nil
		})
	}
	_ = g.Wait()

	var combined []domain.Candidate
	for _, out := range outcomes {
		for _, call := range out.calls {
			call.SubQuestion = question
			s.Log(call)
		}
		combined = append(combined, out.candidates...)
		s.Tried = append(s.Tried, out.tool)
	}

	k := r.budget.GatherK * len(s.Selected)
	ranked := o.rerankCandidates(ctx, r, question, combined, k)

	relevant := make([]domain.Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.Relevance >= r.budget.MinRelevance {
			relevant = append(relevant, c)
		}
	}
	s.LastGathered = relevant
	added := s.Evidence.Add(relevant...)

	r.log.Info("Gathered %d candidates, %d relevant, %d new evidence (iteration %d/%d)",
		len(combined), len(relevant), added, s.Iteration, s.MaxIterations)

	return domain.StepEvaluate
}

func (o *Orchestrator) internalSearch(ctx context.Context, r *run, question string) toolOutcome {
	out := toolOutcome{tool: domain.ToolInternalSearch}
	tool := string(domain.ToolInternalSearch)
	if o.search == nil {
		out.calls = append(out.calls, o.record(tool, time.Now(), domain.ToolCallFailed, 0, "internal search unavailable"))
		return out
	}

	opts := domain.SearchOptions{
		SearchSpaceID: r.state.SearchSpaceID,
		Limit:         r.budget.GatherK * 2,
		Mode:          domain.SearchModeChunk,
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	results, err := o.search.Search(callCtx, question, opts)
	if err != nil && errors.Is(err, domain.ErrRetrievalUnavailable) && callCtx.Err() == nil {
		r.log.Warn("Dense retrieval unavailable, retrying sparse-only: %v", err)
		out.calls = append(out.calls, o.record(tool, start, domain.ToolCallDegraded, 0,
			"dense retrieval unavailable, falling back to sparse-only: "+err.Error()))
		opts.SparseOnly = true
		start = time.Now()
		results, err = o.search.Search(callCtx, question, opts)
	}

	if err != nil {
		status := o.failureStatus(callCtx, err)
		r.log.Warn("Internal search %s: %v", status, err)
		out.calls = append(out.calls, o.record(tool, start, status, 0, err.Error()))
		return out
	}

	out.candidates = results
	out.calls = append(out.calls, o.record(tool, start, domain.ToolCallOK, len(results), ""))
	return out
}

func (o *Orchestrator) webSearch(ctx context.Context, r *run, question string) toolOutcome {
	out := toolOutcome{tool: domain.ToolWebSearch}
	tool := string(domain.ToolWebSearch)
	if !o.WebEnabled() {
		out.calls = append(out.calls, o.record(tool, time.Now(), domain.ToolCallFailed, 0, "web search unavailable"))
		return out
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	results, err := o.web.SearchWeb(callCtx, question, o.web.MaxResults())
	switch {
	case err == nil:
		out.calls = append(out.calls, o.record(tool, start, domain.ToolCallOK, len(results), ""))
	case len(results) > 0:
		r.log.Warn("Web search partially failed: %v", err)
		out.calls = append(out.calls, o.record(tool, start, domain.ToolCallDegraded, len(results), err.Error()))
	default:
		status := o.failureStatus(callCtx, err)
		r.log.Warn("Web search %s: %v", status, err)
		out.calls = append(out.calls, o.record(tool, start, status, 0, err.Error()))
	}
	out.candidates = results
	return out
}

func (o *Orchestrator) rerankCandidates(
	ctx context.Context, r *run, question string, candidates []domain.Candidate, k int,
) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if o.rerank == nil {
		if k > 0 && k < len(candidates) {
			return candidates[:k]
		}
		return candidates
	}

	start := time.Now()
	ranked, err := o.rerank.Rerank(ctx, question, candidates, k)
	if err != nil {
		r.log.Warn("Rerank unavailable, passing through: %v", err)
		r.state.Log(o.record(toolRerank, start, domain.ToolCallDegraded, len(ranked),
			"passthrough: "+err.Error()))
	}
	return ranked
}

// evaluate decides whether the head sub-question has enough evidence.
func (o *Orchestrator) evaluate(_ context.Context, r *run) domain.AgentStep {
	s := r.state

	if len(s.LastGathered) > 0 {
		r.log.Info("Evidence sufficient for %q", s.Head())
		s.PopSubQuestion()
	} else {
		r.log.Info("Evidence insufficient for %q, re-routing", s.Head())
	}

	if s.BudgetExhausted() {
		return domain.StepSynthesize
	}
	return domain.StepRoute
}

// synthesize produces the answer from everything gathered.
func (o *Orchestrator) synthesize(ctx context.Context, r *run) domain.AgentStep {
	s := r.state
	start := time.Now()

	syn, err := o.synth.Synthesize(ctx, s.OriginalQuery, s.Evidence.Items())
	if ctx.Err() != nil {
		return domain.StepCancelled
	}
	if syn == nil {
		syn = insufficient(0)
	}
	if err != nil {
		s.Log(o.record(toolSynthesize, start, domain.ToolCallFailed, 0, err.Error()))
	} else if syn.Stripped > 0 {
		s.Log(o.record(toolSynthesize, start, domain.ToolCallDegraded, len(syn.Citations),
			fmt.Sprintf("stripped %d unmatched citation markers", syn.Stripped)))
	}

	r.answer = syn
	return domain.StepDone
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// failureStatus distinguishes a per-call timeout from other failures.
func (o *Orchestrator) failureStatus(callCtx context.Context, err error) domain.ToolCallStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return domain.ToolCallTimedOut
	}
	return domain.ToolCallFailed
}

func (o *Orchestrator) record(tool string, start time.Time, status domain.ToolCallStatus, results int, detail string) domain.ToolCall {
	return domain.ToolCall{
		ID:       uuid.New().String(),
		Tool:     tool,
		Status:   status,
		Results:  results,
		Detail:   detail,
		Duration: time.Since(start),
		At:       start,
	}
}
