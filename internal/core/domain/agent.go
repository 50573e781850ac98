package domain

import (
	"time"
)

// AgentStep is a state of the research orchestrator.
type AgentStep string

// Orchestrator states. DONE and CANCELLED are terminal.
const (
	StepDecompose  AgentStep = "DECOMPOSE"
	StepRoute      AgentStep = "ROUTE"
	StepGather     AgentStep = "GATHER"
	StepEvaluate   AgentStep = "EVALUATE"
	StepSynthesize AgentStep = "SYNTHESIZE"
	StepDone       AgentStep = "DONE"
	StepCancelled  AgentStep = "CANCELLED"
)

// IsTerminal returns true for states the orchestrator never leaves.
func (s AgentStep) IsTerminal() bool {
	return s == StepDone || s == StepCancelled
}

// String returns the string representation.
func (s AgentStep) String() string {
	return string(s)
}

// Tool identifies an evidence source the orchestrator can invoke.
type Tool string

// Available tools.
const (
	ToolInternalSearch Tool = "internal_search"
	ToolWebSearch      Tool = "web_search"
)

// ToolSet is an ordered, duplicate-free set of tools.
type ToolSet []Tool

// Has reports whether the set contains t.
func (s ToolSet) Has(t Tool) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

// Without returns a copy of the set with t removed.
func (s ToolSet) Without(t Tool) ToolSet {
	out := make(ToolSet, 0, len(s))
	for _, x := range s {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}

// ToolCallStatus records the outcome of one tool invocation.
type ToolCallStatus string

// Tool call outcomes.
const (
	ToolCallOK       ToolCallStatus = "ok"
	ToolCallDegraded ToolCallStatus = "degraded"
	ToolCallFailed   ToolCallStatus = "failed"
	ToolCallTimedOut ToolCallStatus = "timed_out"
)

// ToolCall is one entry in the orchestrator's audit log. Degradations
// (fallbacks, passthroughs, retries) are logged here too.
type ToolCall struct {
	ID          string         `json:"id"`
	Iteration   int            `json:"iteration"`
	SubQuestion string         `json:"sub_question"`
	Tool        string         `json:"tool"`
	Status      ToolCallStatus `json:"status"`
	Results     int            `json:"results"`
	Detail      string         `json:"detail,omitempty"`
	Duration    time.Duration  `json:"duration"`
	At          time.Time      `json:"at"`
}

// Role is a chat participant.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one prior turn supplied with an ask request.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResearchDepth selects a preset budget for the orchestrator.
type ResearchDepth string

// Research depths, from cheapest to most thorough.
const (
	DepthGeneral ResearchDepth = "GENERAL"
	DepthDeep    ResearchDepth = "DEEP"
	DepthDeeper  ResearchDepth = "DEEPER"
	DepthDeepest ResearchDepth = "DEEPEST"
)

// IsValid returns true if the depth is recognised.
func (d ResearchDepth) IsValid() bool {
	switch d {
	case DepthGeneral, DepthDeep, DepthDeeper, DepthDeepest:
		return true
	default:
		return false
	}
}

// Budget scales an agent configuration for this depth.
func (d ResearchDepth) Budget(base AgentConfig) AgentConfig {
	out := base
	switch d {
	case DepthDeep:
		out.MaxIterations = base.MaxIterations * 2
		out.MaxSubQuestions = base.MaxSubQuestions + 1
		out.EvidenceCap = base.EvidenceCap * 2
	case DepthDeeper:
		out.MaxIterations = base.MaxIterations * 3
		out.MaxSubQuestions = base.MaxSubQuestions + 2
		out.EvidenceCap = base.EvidenceCap * 3
	case DepthDeepest:
		out.MaxIterations = base.MaxIterations * 4
		out.MaxSubQuestions = base.MaxSubQuestions + 3
		out.EvidenceCap = base.EvidenceCap * 4
	}
	return out
}

// AskRequest is the input to the chat endpoint.
type AskRequest struct {
	Query         string
	SearchSpaceID string
	History       []ChatMessage
	Depth         ResearchDepth

	// DisableWeb prevents web search for this request even when configured.
	DisableWeb bool
}

// Citation binds an answer marker to the evidence it cites.
type Citation struct {
	Marker    int       `json:"marker"`
	Candidate Candidate `json:"candidate"`
}

// Answer is the product of one orchestration.
type Answer struct {
	Text      string     `json:"answer_text"`
	Citations []Citation `json:"citations"`

	// Insufficient is set when the answer is the explicit
	// insufficient-information response.
	Insufficient bool `json:"insufficient"`

	ToolCallLog []ToolCall `json:"tool_call_log"`

	// FinalStep is DONE or CANCELLED.
	FinalStep AgentStep `json:"final_step"`

	// Evidence holds the gathered candidates. For a cancelled run this is
	// the partial evidence and Text is empty.
	Evidence []Candidate `json:"evidence,omitempty"`
}

// InsufficientInformation is the answer text used when there is no evidence
// to ground a response.
const InsufficientInformation = "I could not find enough information in your knowledge base to answer this question."

// AgentState is the mutable state of one orchestration. It is created when
// a query starts and discarded once the answer is produced.
type AgentState struct {
	OriginalQuery string
	SearchSpaceID string

	// SubQuestions is a queue; the head is the question being researched.
	SubQuestions []string

	Evidence      *EvidenceSet
	Iteration     int
	MaxIterations int
	ToolCallLog   []ToolCall
	Step          AgentStep

	// WebEnabled is false when no web provider is configured or the
	// request disabled web search.
	WebEnabled bool

	// Selected holds the tools chosen by ROUTE for the head question.
	Selected ToolSet

	// Tried holds the tools already gathered for the head question.
	Tried ToolSet

	// LastGathered holds the candidates from the most recent GATHER.
	LastGathered []Candidate
}

// NewAgentState creates the initial state for a query.
func NewAgentState(query, spaceID string, maxIterations, evidenceCap int, webEnabled bool) *AgentState {
	return &AgentState{
		OriginalQuery: query,
		SearchSpaceID: spaceID,
		Evidence:      NewEvidenceSet(evidenceCap),
		MaxIterations: maxIterations,
		Step:          StepDecompose,
		WebEnabled:    webEnabled,
	}
}

// Head returns the sub-question being researched, or "" if the queue is empty.
func (s *AgentState) Head() string {
	if len(s.SubQuestions) == 0 {
		return ""
	}
	return s.SubQuestions[0]
}

// PopSubQuestion discards the head sub-question and resets per-question state.
func (s *AgentState) PopSubQuestion() {
	if len(s.SubQuestions) > 0 {
		s.SubQuestions = s.SubQuestions[1:]
	}
	s.Selected = nil
	s.Tried = nil
	s.LastGathered = nil
}

// BudgetExhausted reports whether the GATHER budget has been spent.
func (s *AgentState) BudgetExhausted() bool {
	return s.Iteration >= s.MaxIterations
}

// Log appends an entry to the tool call log.
func (s *AgentState) Log(call ToolCall) {
	call.Iteration = s.Iteration
	if call.SubQuestion == "" {
		call.SubQuestion = s.Head()
	}
	s.ToolCallLog = append(s.ToolCallLog, call)
}
