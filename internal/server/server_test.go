package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llmcouncil/councild/internal/config"
	"github.com/llmcouncil/councild/internal/conversation"
	"github.com/llmcouncil/councild/internal/council"
	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/openrouter"
	"github.com/llmcouncil/councild/internal/stream"
)

// scriptedClient answers per call-site, recognized by prompt text.
type scriptedClient struct {
	failAll bool
}

func (f *scriptedClient) Complete(ctx context.Context, apiKey, model string, messages []openrouter.Message, timeout time.Duration) (string, error) {
	if f.failAll {
		return "", errors.New("scripted failure")
	}
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	switch {
	case strings.Contains(prompt, "FINAL RANKING:"):
		return "FINAL RANKING:\n1. Response A\n2. Response B", nil
	case strings.Contains(prompt, "Chairman of an LLM Council"):
		return "the collective answer", nil
	case strings.Contains(prompt, "very short title"):
		return "Council Test Title", nil
	default:
		return "answer from " + model, nil
	}
}

type testServerOpts struct {
	cfg    *config.Config
	model  council.ModelClient
	store  conversation.Store
	client *openrouter.Client
}

func newTestServer(t *testing.T, opts testServerOpts) *Server {
	t.Helper()

	cfg := opts.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	model := opts.model
	if model == nil {
		model = &scriptedClient{}
	}
	pipeline, err := council.New(council.Config{
		Client:          model,
		DefaultCouncil:  []string{"prov/m1", "prov/m2"},
		DefaultChairman: "prov/chair",
	})
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}
	client := opts.client
	if client == nil {
		client = openrouter.NewClient()
	}
	return New(cfg, pipeline, client, opts.store, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, "sk-test")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEvents(t *testing.T, body io.Reader) []map[string]any {
	t.Helper()
	dec := stream.NewDecoder(body)
	var events []map[string]any
	for {
		payload, err := dec.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("decoding stream: %v", err)
		}
		var ev map[string]any
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("unmarshaling event %q: %v", payload, err)
		}
		events = append(events, ev)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testServerOpts{})
	rec := doJSON(t, s, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCouncilStream_MissingAPIKey(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	req := httptest.NewRequest(http.MethodPost, "/api/council/stream",
		strings.NewReader(`{"content":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), missingKeyDetail) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCouncilStream_EmptyContent(t *testing.T) {
	s := newTestServer(t, testServerOpts{})
	rec := doJSON(t, s, http.MethodPost, "/api/council/stream", map[string]any{"content": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCouncilStream_OversizedContent(t *testing.T) {
	s := newTestServer(t, testServerOpts{})
	rec := doJSON(t, s, http.MethodPost, "/api/council/stream",
		map[string]any{"content": strings.Repeat("x", 30001)})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestCouncilStream_EventSequence(t *testing.T) {
	s := newTestServer(t, testServerOpts{})
	rec := doJSON(t, s, http.MethodPost, "/api/council/stream",
		map[string]any{"content": "q", "is_first_message": true})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !rec.Flushed {
		t.Error("stream was never flushed")
	}

	events := decodeEvents(t, rec.Body)
	want := []string{
		"stage1_start", "stage1_complete",
		"stage2_start", "stage2_complete",
		"stage3_start", "stage3_complete",
		"title_complete", "complete",
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev["type"] != want[i] {
			t.Errorf("event[%d] type = %v, want %s", i, ev["type"], want[i])
		}
	}

	// stage2_complete carries label metadata on the wire.
	meta, ok := events[3]["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("stage2_complete metadata missing: %v", events[3])
	}
	if _, ok := meta["label_to_model"]; !ok {
		t.Error("label_to_model missing from metadata")
	}
	if _, ok := meta["aggregate_rankings"]; !ok {
		t.Error("aggregate_rankings missing from metadata")
	}
}

func TestCouncilStream_TotalFailureInBand(t *testing.T) {
	s := newTestServer(t, testServerOpts{model: &scriptedClient{failAll: true}})
	rec := doJSON(t, s, http.MethodPost, "/api/council/stream", map[string]any{"content": "q"})

	// The stream opened, so the failure arrives in-band with status 200.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	events := decodeEvents(t, rec.Body)
	if len(events) != 2 || events[1]["type"] != "error" {
		t.Fatalf("events = %v, want stage1_start then error", events)
	}
	if msg := events[1]["message"]; msg != council.AllModelsFailedMessage {
		t.Errorf("message = %v", msg)
	}
}

func TestCouncilStream_RateLimited(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimitMaxRequests = 2
	s := newTestServer(t, testServerOpts{cfg: cfg})

	for i := 0; i < 2; i++ {
		if rec := doJSON(t, s, http.MethodPost, "/api/council/stream", map[string]any{"content": "q"}); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doJSON(t, s, http.MethodPost, "/api/council/stream", map[string]any{"content": "q"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(30*time.Second, 2)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two hits must pass")
	}
	if rl.allow("a") {
		t.Fatal("third hit within window must fail")
	}
	if !rl.allow("b") {
		t.Fatal("separate keys have separate budgets")
	}

	now = now.Add(31 * time.Second)
	if !rl.allow("a") {
		t.Fatal("hit after window expiry must pass")
	}
}

func TestConversationEndpoints(t *testing.T) {
	store, err := conversation.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, testServerOpts{store: store})

	rec := doJSON(t, s, http.MethodPost, "/api/conversations", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var conv conversation.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/conversations", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), conv.ID) {
		t.Fatalf("list status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestCouncilStream_PersistsExchange(t *testing.T) {
	store, err := conversation.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, testServerOpts{store: store})

	conv, err := store.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/council/stream", map[string]any{
		"content":          "explain channels",
		"is_first_message": true,
		"conversation_id":  conv.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	saved, err := store.Get(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Messages) != 2 {
		t.Fatalf("got %d messages, want user + assistant", len(saved.Messages))
	}
	if saved.Messages[0].Role != "user" || saved.Messages[0].Content != "explain channels" {
		t.Errorf("user message = %+v", saved.Messages[0])
	}
	assistant := saved.Messages[1]
	if assistant.Role != "assistant" || assistant.Content != "the collective answer" {
		t.Errorf("assistant message = %+v", assistant)
	}
	if len(assistant.Stage1) != 2 || assistant.Stage3 == nil {
		t.Errorf("stage records not persisted: %+v", assistant)
	}
	if saved.Title != "Council Test Title" {
		t.Errorf("title = %q", saved.Title)
	}
}

func TestListModels_Passthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"openai/gpt-5.2-chat"}]}`))
	}))
	defer upstream.Close()

	s := newTestServer(t, testServerOpts{
		client: openrouter.NewClient(openrouter.WithBaseURL(upstream.URL)),
	})

	rec := doJSON(t, s, http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gpt-5.2-chat") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListModels_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer upstream.Close()

	s := newTestServer(t, testServerOpts{
		client: openrouter.NewClient(openrouter.WithBaseURL(upstream.URL)),
	})

	rec := doJSON(t, s, http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
