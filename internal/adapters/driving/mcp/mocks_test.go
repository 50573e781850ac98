package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.Candidate
	err     error

	// errs, when set, is consumed one per call before err applies.
	errs  []error
	calls []domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.Candidate, error) {
	m.calls = append(m.calls, opts)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.results, m.err
}

// mockRerankService reverses its input, or fails and passes through.
type mockRerankService struct {
	disabled bool
	err      error
	ks       []int
}

func (m *mockRerankService) Enabled() bool { return !m.disabled }

func (m *mockRerankService) Rerank(
	_ context.Context, _ string, candidates []domain.Candidate, k int,
) ([]domain.Candidate, error) {
	m.ks = append(m.ks, k)
	if m.err != nil {
		return candidates[:k], m.err
	}
	out := make([]domain.Candidate, 0, k)
	for i := len(candidates) - 1; i >= 0 && len(out) < k; i-- {
		out = append(out, candidates[i])
	}
	return out, nil
}

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer *domain.Answer
	err    error
	req    domain.AskRequest
}

func (m *mockAskService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.req = req
	return m.answer, m.err
}

// mockSpaceService is a mock implementation of driving.SpaceService.
type mockSpaceService struct {
	spaces []domain.SearchSpace
	err    error
}

func (m *mockSpaceService) Create(_ context.Context, name, description string) (*domain.SearchSpace, error) {
	return &domain.SearchSpace{ID: name, Name: name, Description: description}, m.err
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

func (m *mockSpaceService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	content   string
	details   *driving.DocumentDetails
	err       error
}

func (m *mockDocumentService) ListBySpace(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) GetDetails(_ context.Context, _ string) (*driving.DocumentDetails, error) {
	return m.details, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func basePorts() *Ports {
	return &Ports{
		Search:       &mockSearchService{},
		Ask:          &mockAskService{answer: &domain.Answer{}},
		DefaultSpace: "default",
	}
}
