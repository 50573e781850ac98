// Package ollamaapi is the HTTP client shared by the Ollama embedding and
// LLM adapters.
package ollamaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where a local Ollama listens out of the box.
const DefaultBaseURL = "http://localhost:11434"

// ErrModelNotPulled is returned by Ping when the server is up but does not
// have the model.
var ErrModelNotPulled = errors.New("ollama: model not pulled")

// StatusError is a non-200 answer from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to one Ollama server.
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a client for baseURL, or DefaultBaseURL when it is empty.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the reply into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama: marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping lists local models and checks that model is one of them. A bare
// model name matches its ":latest" tag.
func (c *Client) Ping(ctx context.Context, model string) error {
	var tags tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", http.NoBody, &tags); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run 'ollama pull %s')", ErrModelNotPulled, model, model)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}

// errorMessage unwraps Ollama's {"error": "..."} body, falling back to the
// raw text.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(raw))
}
