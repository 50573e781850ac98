// Package google provides a web search provider backed by Google
// Programmable Search (the Custom Search JSON API).
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.WebSearchProvider = (*Provider)(nil)

// maxPageSize is the largest page the API returns.
const maxPageSize = 10

// Config holds configuration for the Google provider.
type Config struct {
	// APIKey is the Google Cloud API key (required).
	APIKey string

	// EngineID is the Programmable Search Engine ID, "cx" (required).
	EngineID string

	// Endpoint overrides the API endpoint.
	Endpoint string
}

// Provider queries the Custom Search JSON API.
type Provider struct {
	svc      *customsearch.Service
	engineID string
}

// New creates a Google provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("google: API key and engine ID are required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create service: %w", err)
	}
	return &Provider{svc: svc, engineID: cfg.EngineID}, nil
}

// Search returns at most maxResults results. The API caps a page at ten.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]driven.WebResult, error) {
	num := min(max(maxResults, 1), maxPageSize)

	res, err := p.svc.Cse.List().
		Q(query).
		Cx(p.engineID).
		Num(int64(num)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(err)
	}

	results := make([]driven.WebResult, 0, len(res.Items))
	for _, item := range res.Items {
		if len(results) == maxResults {
			break
		}
		results = append(results, driven.WebResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// mapError reports rate and daily quota refusals as a QuotaError.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests || (gerr.Code == http.StatusForbidden && isQuotaReason(gerr)) {
			quota := &driven.QuotaError{Provider: "google"}
			if secs, perr := strconv.Atoi(gerr.Header.Get("Retry-After")); perr == nil && secs > 0 {
				quota.RetryAfter = time.Duration(secs) * time.Second
			}
			return quota
		}
	}
	return fmt.Errorf("google: %w", err)
}

func isQuotaReason(gerr *googleapi.Error) bool {
	for _, e := range gerr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "dailyLimitExceeded", "quotaExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "google"
}
