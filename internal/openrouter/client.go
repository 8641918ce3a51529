// Package openrouter implements the remote model client: a single-call
// abstraction over the OpenRouter chat completions API. It sends one
// chat-style request to one backend under a hard timeout and returns text
// or a typed failure. It never retries and never caches.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llmcouncil/councild/internal/errors"
)

// DefaultBaseURL is the OpenRouter API root used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Message is one chat turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an OpenRouter-compatible chat completions API.
// The credential is passed per call, never stored: councild is a
// user-keyed proxy and holds no credentials of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used for self-hosted gateways and
// tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		// Per-call deadlines come from the context; the transport-level
		// client carries no timeout of its own.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request to one model and returns the
// response text. The call is bounded by timeout; on expiry, transport
// failure, or a non-2xx status it returns a *errors.ProviderError — it
// never raises anything past this boundary and never retries.
func (c *Client) Complete(ctx context.Context, apiKey, model string, messages []Message, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", errors.NewProviderError(model, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewProviderError(model, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewProviderError(model, 0,
				errors.NewTimeoutError("chat completion", timeout).WithCause(errors.ErrTimeout))
		}
		return "", errors.NewProviderError(model, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Keep a short slice of the upstream body for the logs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.NewProviderError(model, resp.StatusCode,
			fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewProviderError(model, resp.StatusCode, err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.NewProviderError(model, resp.StatusCode, fmt.Errorf("response contained no choices"))
	}

	return decoded.Choices[0].Message.Content, nil
}
