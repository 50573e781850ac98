package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockKeywordIndex implements driven.KeywordIndex for testing.
type mockKeywordIndex struct {
	hits      []driven.SearchHit
	searchErr error
	calls     int
}

func (m *mockKeywordIndex) Search(_ context.Context, _, _ string, limit int) ([]driven.SearchHit, error) {
	m.calls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	searchErr error
}

func (m *mockVectorIndex) Search(_ context.Context, _ string, _ []float32, k int) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu        sync.Mutex
	embedding []float32
	embedErr  error
	dims      int
	batches   int

	// short makes EmbedBatch return one vector fewer than asked.
	short bool
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	n := len(texts)
	if m.short {
		n--
	}
	result := make([][]float32, n)
	for i := range result {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return len(m.embedding)
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu sync.Mutex

	// responses are returned in order by Generate; the last one repeats.
	responses []string
	errs      []error
	prompts   []string

	chatResponse string
	chatErr      error
	chatMessages []driven.ChatMessage

	// block makes Generate wait for ctx cancellation.
	block bool
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	var err error
	if len(m.errs) > 0 {
		err = m.errs[min(i, len(m.errs)-1)]
	}
	if err != nil {
		return "", err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	return m.responses[min(i, len(m.responses)-1)], nil
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.chatMessages = messages
	m.mu.Unlock()
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.chatResponse, nil
}

func (m *mockLLMService) generateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockReranker implements driven.Reranker for testing.
type mockReranker struct {
	scores   []float64
	scoreErr error
	scoreFn  func(query string, docs []string) []float64
}

func (m *mockReranker) Score(_ context.Context, query string, docs []string) ([]float64, error) {
	if m.scoreErr != nil {
		return nil, m.scoreErr
	}
	if m.scoreFn != nil {
		return m.scoreFn(query, docs), nil
	}
	return m.scores, nil
}

func (m *mockReranker) Name() string {
	return "mock-rerank"
}

// mockWebProvider implements driven.WebSearchProvider for testing.
type mockWebProvider struct {
	name    string
	results []driven.WebResult
	err     error
	delay   time.Duration

	mu    sync.Mutex
	calls int
}

func (m *mockWebProvider) Search(ctx context.Context, _ string, maxResults int) ([]driven.WebResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if maxResults < len(m.results) {
		return m.results[:maxResults], nil
	}
	return m.results, nil
}

func (m *mockWebProvider) Name() string {
	if m.name == "" {
		return "mock-web"
	}
	return m.name
}

func (m *mockWebProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// --- Orchestrator collaborators ---

// fakeSearcher implements InternalSearcher with a per-call function.
type fakeSearcher struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Candidate, error)
	calls []domain.SearchOptions
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Candidate, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	return f.fn(ctx, query, opts)
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeWeb implements WebSearcher.
type fakeWeb struct {
	mu      sync.Mutex
	results []domain.Candidate
	err     error
	queries []string
}

func (f *fakeWeb) Enabled() bool   { return true }
func (f *fakeWeb) MaxResults() int { return 5 }

func (f *fakeWeb) SearchWeb(_ context.Context, query string, _ int) ([]domain.Candidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.results, f.err
}

func (f *fakeWeb) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// recordingSynth implements AnswerSynthesizer and records the evidence it saw.
type recordingSynth struct {
	inner    AnswerSynthesizer
	evidence []domain.Candidate
	calls    int
	onCall   func()
}

func (r *recordingSynth) Synthesize(ctx context.Context, query string, evidence []domain.Candidate) (*Synthesis, error) {
	r.calls++
	r.evidence = evidence
	if r.onCall != nil {
		r.onCall()
	}
	return r.inner.Synthesize(ctx, query, evidence)
}

// --- Fixtures ---

func internalCandidate(id string, score float64, content string) domain.Candidate {
	return domain.Candidate{
		Content:    content,
		Title:      "Doc " + id,
		Score:      score,
		Relevance:  score,
		SourceRef:  domain.SourceRef{Kind: domain.RefKindChunk, ID: id, DocumentID: "doc-" + id},
		Provenance: domain.ProvenanceInternal,
	}
}

func webCandidate(url string, score float64, content string) domain.Candidate {
	return domain.Candidate{
		Content:    content,
		Title:      url,
		Score:      score,
		Relevance:  score,
		SourceRef:  domain.SourceRef{Kind: domain.RefKindURL, URL: url},
		Provenance: domain.ProvenanceWeb,
	}
}

func testAgentConfig() domain.AgentConfig {
	cfg := domain.DefaultConfig().Agent
	cfg.CallTimeout = domain.Duration{Duration: time.Second}
	return cfg
}
