package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// WebSearchService fans a query out to every configured web provider and
// normalises the results into web Candidates.
type WebSearchService struct {
	providers  []driven.WebSearchProvider
	limiters   []*providerLimiter
	timeout    time.Duration
	maxResults int
}

// NewWebSearchService creates a web search service. With no providers the
// service is disabled.
func NewWebSearchService(
	cfg domain.WebSearchConfig, timeout time.Duration, providers ...driven.WebSearchProvider,
) *WebSearchService {
	limiters := make([]*providerLimiter, len(providers))
	for i := range providers {
		limiters[i] = newProviderLimiter(cfg.RequestsPerSecond)
	}
	return &WebSearchService{
		providers:  providers,
		limiters:   limiters,
		timeout:    timeout,
		maxResults: cfg.MaxResults,
	}
}

// Enabled reports whether at least one provider is configured.
func (s *WebSearchService) Enabled() bool {
	return s != nil && len(s.providers) > 0
}

// MaxResults returns the configured default result count.
func (s *WebSearchService) MaxResults() int {
	if s.maxResults <= 0 {
		return 5
	}
	return s.maxResults
}

type providerOutcome struct {
	results []driven.WebResult
	err     error
}

// SearchWeb queries all providers concurrently. Results are merged and
// de-duplicated by URL, highest score first.
//
// Failures wrap ErrWebSearchFailure. If some providers succeed, their
// results are returned together with the error; callers may use both.
func (s *WebSearchService) SearchWeb(ctx context.Context, query string, maxResults int) ([]domain.Candidate, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: no provider configured", domain.ErrWebSearchFailure)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Candidate{}, nil
	}
	if maxResults <= 0 {
		maxResults = s.MaxResults()
	}

	logger.Section("Web Search")
	logger.Debug("Query: %q, providers: %d, max: %d", query, len(s.providers), maxResults)

	outcomes := make([]providerOutcome, len(s.providers))
	var wg sync.WaitGroup
	for i := range s.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.callProvider(ctx, i, query, maxResults)
		}()
	}
	wg.Wait()

	var errs []error
	var batches [][]domain.Candidate
	for i, out := range outcomes {
		name := s.providers[i].Name()
		if out.err != nil {
			logger.Warn("Web provider %s failed: %v", name, out.err)
			errs = append(errs, fmt.Errorf("%s: %w", name, out.err))
			continue
		}
		logger.Debug("Web provider %s: %d results", name, len(out.results))
		batches = append(batches, normaliseWebResults(out.results))
	}

	merged := mergeWebCandidates(maxResults, batches...)

	if len(errs) > 0 {
		return merged, fmt.Errorf("%w: %w", domain.ErrWebSearchFailure, errors.Join(errs...))
	}
	return merged, nil
}

func (s *WebSearchService) callProvider(ctx context.Context, i int, query string, maxResults int) providerOutcome {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiters[i].Wait(callCtx); err != nil {
		return providerOutcome{err: fmt.Errorf("rate limit wait: %w", err)}
	}

	results, err := s.providers[i].Search(callCtx, query, maxResults)
	if err != nil {
		var quota *driven.QuotaError
		if errors.As(err, &quota) {
			s.limiters[i].Backoff(quota.RetryAfter)
		}
		return providerOutcome{err: err}
	}
	return providerOutcome{results: results}
}

// normaliseWebResults converts provider results into Candidates. Results
// without an http(s) URL are dropped. Scores outside (0, 1] are replaced by
// a rank-derived score.
func normaliseWebResults(results []driven.WebResult) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		ref := domain.SourceRef{Kind: domain.RefKindURL, URL: u}
		if !ref.Resolvable() {
			continue
		}

		score := r.Score
		if score <= 0 || score > 1 {
			score = 1 / (1 + 0.1*float64(len(out)))
		}

		content := strings.TrimSpace(r.Snippet)
		if content == "" {
			content = strings.TrimSpace(r.Title)
		}

		out = append(out, domain.Candidate{
			Content:    content,
			Title:      strings.TrimSpace(r.Title),
			Score:      score,
			SourceRef:  ref,
			Provenance: domain.ProvenanceWeb,
			Relevance:  score,
		})
	}
	return out
}

// mergeWebCandidates de-duplicates batches by canonical URL, keeping the
// higher-scored copy, and orders by score then arrival.
func mergeWebCandidates(limit int, batches ...[]domain.Candidate) []domain.Candidate {
	index := make(map[string]int)
	var merged []domain.Candidate

	for _, batch := range batches {
		for _, c := range batch {
			key := canonicalURL(c.SourceRef.URL)
			if i, ok := index[key]; ok {
				if c.Score > merged[i].Score {
					merged[i] = c
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []domain.Candidate{}
	}
	return merged
}

// canonicalURL lowercases scheme and host and drops fragments and trailing
// slashes so trivially different links collapse.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
