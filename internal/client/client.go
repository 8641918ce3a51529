// Package client is the Go consumer of a councild server. It posts one
// council exchange and replays the SSE events through a callback, applying
// the consumer-side guarantee: if the stream ends without a terminal
// event, a synthetic complete is delivered so callers always observe
// exactly one terminal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/llmcouncil/councild/internal/council"
	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/openrouter"
	"github.com/llmcouncil/councild/internal/stream"
)

// Client talks to one councild server. The API credential is supplied per
// call and never stored.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Streams run as long as the council deliberates; the context
		// bounds the call, not a client-wide timeout.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamOptions is the request body for one exchange.
type StreamOptions struct {
	Content             string               `json:"content"`
	CouncilModels       []string             `json:"council_models,omitempty"`
	ChairmanModel       string               `json:"chairman_model,omitempty"`
	IsFirstMessage      bool                 `json:"is_first_message,omitempty"`
	ConversationContext []openrouter.Message `json:"conversation_context,omitempty"`
	ConversationID      string               `json:"conversation_id,omitempty"`
}

// Event is one received progress event. Data stays raw until the caller
// asks for the stage-typed view.
type Event struct {
	Type      council.EventType       `json:"type"`
	Data      json.RawMessage         `json:"data,omitempty"`
	Metadata  *council.Stage2Metadata `json:"metadata,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Synthetic bool                    `json:"synthetic,omitempty"`
}

// Terminal reports whether this event ends the exchange.
func (e Event) Terminal() bool {
	return e.Type == council.EventComplete || e.Type == council.EventError
}

// Stage1Responses decodes the stage1_complete payload.
func (e Event) Stage1Responses() ([]council.StageResponse, error) {
	var out []council.StageResponse
	return out, json.Unmarshal(e.Data, &out)
}

// Judgments decodes the stage2_complete payload.
func (e Event) Judgments() ([]council.RankingJudgment, error) {
	var out []council.RankingJudgment
	return out, json.Unmarshal(e.Data, &out)
}

// Synthesis decodes the stage3_complete payload.
func (e Event) Synthesis() (council.Synthesis, error) {
	var out council.Synthesis
	return out, json.Unmarshal(e.Data, &out)
}

// Title decodes the title_complete payload.
func (e Event) Title() (string, error) {
	var out council.TitleData
	err := json.Unmarshal(e.Data, &out)
	return out.Title, err
}

// errorBody matches the server's non-streaming rejections.
type errorBody struct {
	Detail string `json:"detail"`
}

// Stream runs one exchange and invokes onEvent for each received event in
// order. A truncated stream yields one synthetic complete. onEvent
// returning an error aborts the stream and surfaces that error.
func (c *Client) Stream(ctx context.Context, apiKey string, opts StreamOptions, onEvent func(Event) error) error {
	body, err := json.Marshal(opts)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/council/stream", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-OpenRouter-Api-Key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "starting stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var reject errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &reject) == nil && reject.Detail != "" {
			return fmt.Errorf("server rejected request (status %d): %s", resp.StatusCode, reject.Detail)
		}
		return fmt.Errorf("server rejected request (status %d)", resp.StatusCode)
	}

	dec := stream.NewDecoder(resp.Body)
	sawTerminal := false
	for !sawTerminal {
		payload, err := dec.Next()
		if err != nil {
			// io.EOF is the clean end; anything else is a broken transport.
			// Either way the stream is over and the synthetic-complete rule
			// below decides what the caller sees.
			break
		}

		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			// A malformed frame is dropped, not fatal to the stream.
			continue
		}
		if ev.Terminal() {
			sawTerminal = true
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}

	if !sawTerminal {
		return onEvent(Event{Type: council.EventComplete, Synthetic: true})
	}
	return nil
}
