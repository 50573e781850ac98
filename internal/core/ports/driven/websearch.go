package driven

import (
	"context"
	"fmt"
	"time"
)

// WebSearchProvider queries a live web search API.
// Implementations are stateless per call.
type WebSearchProvider interface {
	// Search returns at most maxResults results for query.
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)

	// Name identifies the provider in logs and tool call records.
	Name() string
}

// WebResult is a provider result before normalisation into a Candidate.
type WebResult struct {
	Title   string
	URL     string
	Snippet string

	// Score is the provider's relevance score, or 0 if it reports none.
	Score float64
}

// QuotaError reports that a provider refused a call because of rate or
// quota limits. Callers should back off for RetryAfter.
type QuotaError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return e.Provider + ": rate limited"
}
