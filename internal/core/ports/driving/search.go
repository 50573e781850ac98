package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// SearchService provides hybrid search to external actors.
type SearchService interface {
	// Search fuses dense and sparse retrieval within one search space.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Candidate, error)
}

// AskService answers questions with cited evidence.
type AskService interface {
	// Ask runs one research orchestration. It always returns an answer
	// payload unless the request itself is invalid or cancelled.
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}

// RerankService reorders retrieved candidates by relevance to a query.
type RerankService interface {
	// Rerank returns the k most relevant candidates. When the provider
	// fails the first k come back unchanged with an error wrapping
	// ErrRerankUnavailable.
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, k int) ([]domain.Candidate, error)

	// Enabled reports whether a provider is configured.
	Enabled() bool
}
