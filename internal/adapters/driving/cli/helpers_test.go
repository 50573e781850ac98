package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
)

// --- Mock services ---

type mockAskService struct {
	mu       sync.Mutex
	requests []domain.AskRequest
	answer   *domain.Answer
	err      error
}

func (m *mockAskService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return m.answer, m.err
	}
	if m.answer != nil {
		return m.answer, nil
	}
	return &domain.Answer{
		Text: "Rotate the key from the admin console [1].",
		Citations: []domain.Citation{{
			Marker:    1,
			Candidate: testCandidate("c1", "Key rotation runbook"),
		}},
		ToolCallLog: []domain.ToolCall{
			{Iteration: 1, Tool: "internal_search", Status: domain.ToolCallOK, Results: 3, Duration: 12 * time.Millisecond},
			{Iteration: 1, Tool: "web_search", Status: domain.ToolCallDegraded, Detail: "quota exceeded"},
		},
		FinalStep: domain.StepDone,
	}, nil
}

type mockSearchService struct {
	mu      sync.Mutex
	results []domain.Candidate
	errs    []error
	calls   []domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.results, nil
}

// mockRerankService reverses its input, or fails and passes through.
type mockRerankService struct {
	mu       sync.Mutex
	disabled bool
	err      error
	ks       []int
}

func (m *mockRerankService) Enabled() bool { return !m.disabled }

func (m *mockRerankService) Rerank(
	_ context.Context, _ string, candidates []domain.Candidate, k int,
) ([]domain.Candidate, error) {
	m.mu.Lock()
	m.ks = append(m.ks, k)
	m.mu.Unlock()
	if m.err != nil {
		return candidates[:k], m.err
	}
	out := make([]domain.Candidate, 0, k)
	for i := len(candidates) - 1; i >= 0 && len(out) < k; i-- {
		out = append(out, candidates[i])
	}
	return out, nil
}

type mockIngestService struct {
	mu   sync.Mutex
	docs []*domain.Document
	body []string
	err  error
}

func (m *mockIngestService) UpsertChunks(_ context.Context, _ driving.UpsertRequest) error {
	return m.err
}

func (m *mockIngestService) IngestDocument(_ context.Context, doc *domain.Document, content string) (*driving.IngestResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	m.body = append(m.body, content)
	return &driving.IngestResult{DocumentID: "doc-new", Chunks: 2}, nil
}

type mockDocumentService struct {
	docs    []domain.Document
	deleted []string
	err     error
}

func (m *mockDocumentService) ListBySpace(_ context.Context, _ string) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetContent(ctx context.Context, id string) (string, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

func (m *mockDocumentService) GetDetails(ctx context.Context, id string) (*driving.DocumentDetails, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &driving.DocumentDetails{
		ID:            doc.ID,
		SearchSpaceID: doc.SearchSpaceID,
		SpaceName:     "default",
		SourceType:    doc.SourceType,
		Title:         doc.Title,
		URI:           doc.SourceURI,
		ChunkCount:    4,
		CreatedAt:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Metadata:      map[string]string{"mime_type": "text/markdown", "format": "markdown"},
	}, nil
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSpaceService struct {
	spaces  []domain.SearchSpace
	deleted []string
	err     error
}

func (m *mockSpaceService) Create(_ context.Context, name, description string) (*domain.SearchSpace, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := domain.SearchSpace{ID: "space-" + name, Name: name, Description: description}
	m.spaces = append(m.spaces, s)
	return &s, nil
}

func (m *mockSpaceService) List(_ context.Context) ([]domain.SearchSpace, error) {
	return m.spaces, m.err
}

func (m *mockSpaceService) Get(_ context.Context, idOrName string) (*domain.SearchSpace, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.spaces {
		if m.spaces[i].ID == idOrName || m.spaces[i].Name == idOrName {
			return &m.spaces[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSpaceService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockNormaliser accepts text types and echoes the content back.
type mockNormaliser struct {
	raws []*domain.RawDocument
}

func (m *mockNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	m.raws = append(m.raws, raw)
	title := "Untitled"
	if t, ok := raw.Metadata["title"].(string); ok {
		title = t
	}
	return &driven.NormaliseResult{
		Title:    title,
		Content:  string(raw.Content),
		Metadata: map[string]any{"mime_type": raw.MIMEType},
	}, nil
}

func (m *mockNormaliser) Supports(mimeType string) bool {
	return mimeType == "text/plain" || mimeType == "text/markdown"
}

// --- Fixtures ---

func testCandidate(id, title string) domain.Candidate {
	return domain.Candidate{
		Content:    "content of " + id,
		Title:      title,
		Score:      0.87,
		SourceRef:  domain.SourceRef{Kind: domain.RefKindChunk, ID: id, DocumentID: "doc-" + id},
		Provenance: domain.ProvenanceInternal,
		Highlights: []string{"rotate the signing key"},
	}
}

type testServices struct {
	ask       *mockAskService
	search    *mockSearchService
	ingest    *mockIngestService
	documents *mockDocumentService
	spaces    *mockSpaceService
	norm      *mockNormaliser
}

// setupTestServices injects mocks and returns a cleanup that removes them
// and puts every flag back to its default.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ask: &mockAskService{},
		search: &mockSearchService{results: []domain.Candidate{
			testCandidate("c1", "Key rotation runbook"),
			testCandidate("c2", "Incident review"),
		}},
		ingest: &mockIngestService{},
		documents: &mockDocumentService{docs: []domain.Document{
			{
				ID: "doc-1", Title: "Test Document 1", SourceType: domain.SourceTypeFile,
				SourceURI: "/notes/one.md", SearchSpaceID: "space-default", Content: "first body",
			},
			{ID: "doc-2", Title: "Test Document 2", SourceType: domain.SourceTypeNotion, SearchSpaceID: "space-default"},
		}},
		spaces: &mockSpaceService{spaces: []domain.SearchSpace{
			{ID: "space-default", Name: "default"},
			{ID: "space-eng", Name: "engineering", Description: "Runbooks and RFCs"},
		}},
		norm: &mockNormaliser{},
	}

	SetServices(&Services{
		Ask:          ts.ask,
		Search:       ts.search,
		Ingest:       ts.ingest,
		Documents:    ts.documents,
		Spaces:       ts.spaces,
		Normaliser:   ts.norm,
		DefaultSpace: func(context.Context) (string, error) { return "space-default", nil },
	})

	return ts, resetCommands
}

func resetCommands() {
	SetServices(nil)
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
	resetFlags(rootCmd)
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

var errBoom = errors.New("boom")

// executeCommand runs the root command with args and returns combined output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
