// Package openaicompat is a small JSON client for OpenAI-compatible HTTP
// APIs. It is shared by the OpenAI embedding and LLM adapters, and works
// against Azure OpenAI, LM Studio, vLLM and other compatible servers.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client sends authenticated JSON requests to one API base URL.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	provider string
}

// New creates a client. provider names the backend in errors.
func New(provider, baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		provider: provider,
	}
}

// APIError is a non-2xx response other than a rate limit.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Post sends in as JSON to path and decodes the response into out.
// A 429 becomes a *driven.QuotaError.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// Ping lists models, which checks the key without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create ping request: %w", c.provider, err)
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("%s: ping failed: %w", c.provider, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &driven.QuotaError{Provider: c.provider, RetryAfter: RetryAfter(resp.Header)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

// errorMessage prefers the {"error":{"message":...}} envelope over the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// RetryAfter reads a Retry-After header given in seconds.
func RetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
