package council

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/openrouter"
)

// fakeModelClient scripts responses per model and records every call.
// Responses are routed on the final message's prompt text, which is enough
// to tell the four call sites apart.
type fakeModelClient struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(model, prompt string) (string, error)
}

type fakeCall struct {
	model  string
	prompt string
}

func (f *fakeModelClient) Complete(ctx context.Context, apiKey, model string, messages []openrouter.Message, timeout time.Duration) (string, error) {
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: model, prompt: prompt})
	f.mu.Unlock()
	return f.respond(model, prompt)
}

func (f *fakeModelClient) callsMatching(substr string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if strings.Contains(c.prompt, substr) {
			out = append(out, c)
		}
	}
	return out
}

func scriptedRespond(failing map[string]bool) func(model, prompt string) (string, error) {
	return func(model, prompt string) (string, error) {
		if failing[model] {
			return "", errors.New("scripted failure")
		}
		switch {
		case strings.Contains(prompt, "FINAL RANKING:"):
			return "evaluation text\n\nFINAL RANKING:\n1. Response A\n2. Response B", nil
		case strings.Contains(prompt, "Chairman of an LLM Council"):
			return "the collective answer", nil
		case strings.Contains(prompt, "very short title"):
			return `"Channels In Go"`, nil
		default:
			return "answer from " + model, nil
		}
	}
}

var testCouncil = []string{"prov/m1", "prov/m2", "prov/m3", "prov/m4"}

func newTestPipeline(t *testing.T, client ModelClient) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Client:          client,
		DefaultCouncil:  testCouncil,
		DefaultChairman: "prov/chair",
		TitleModel:      "prov/titler",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func runAndCollect(t *testing.T, p *Pipeline, req Request) []Event {
	t.Helper()
	var events []Event
	for ev := range p.Run(context.Background(), req) {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func assertOneTerminal(t *testing.T, events []Event) {
	t.Helper()
	terminals := 0
	for i, ev := range events {
		if ev.Terminal() {
			terminals++
			if i != len(events)-1 {
				t.Errorf("terminal event at position %d of %d, want last", i, len(events))
			}
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1: %v", terminals, eventTypes(events))
	}
}

func TestRun_HappyPathEventOrder(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{
		APIKey:         "sk-test",
		Content:        "explain channels",
		IsFirstMessage: true,
	})

	want := []EventType{
		EventStage1Start, EventStage1Complete,
		EventStage2Start, EventStage2Complete,
		EventStage3Start, EventStage3Complete,
		EventTitleComplete, EventComplete,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
	assertOneTerminal(t, events)
}

func TestRun_Stage1CarriesAllSuccesses(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q"})

	var responses []StageResponse
	for _, ev := range events {
		if ev.Type == EventStage1Complete {
			responses = ev.Data.([]StageResponse)
		}
	}
	if len(responses) != len(testCouncil) {
		t.Fatalf("stage1_complete carried %d responses, want %d", len(responses), len(testCouncil))
	}

	seen := map[string]bool{}
	for _, r := range responses {
		seen[r.Model] = true
		if r.Response != "answer from "+r.Model {
			t.Errorf("response for %s = %q", r.Model, r.Response)
		}
	}
	for _, m := range testCouncil {
		if !seen[m] {
			t.Errorf("model %s missing from stage1 responses", m)
		}
	}
}

func TestRun_PartialFailureIsolated(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(map[string]bool{
		"prov/m2": true,
		"prov/m4": true,
	})}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q"})

	assertOneTerminal(t, events)
	if last := events[len(events)-1]; last.Type != EventComplete {
		t.Fatalf("terminal = %s, want complete; sequence %v", last.Type, eventTypes(events))
	}

	for _, ev := range events {
		switch ev.Type {
		case EventStage1Complete:
			responses := ev.Data.([]StageResponse)
			if len(responses) != 2 {
				t.Errorf("stage1 successes = %d, want 2", len(responses))
			}
			for _, r := range responses {
				if r.Model == "prov/m2" || r.Model == "prov/m4" {
					t.Errorf("failed model %s present in stage1 responses", r.Model)
				}
			}
		case EventStage2Complete:
			if meta := ev.Metadata; meta == nil || len(meta.LabelToModel) != 2 {
				t.Errorf("stage2 metadata = %+v, want 2 labels", ev.Metadata)
			}
		}
	}

	// Only the stage-1 survivors judge.
	for _, c := range client.callsMatching("FINAL RANKING:") {
		if c.model == "prov/m2" || c.model == "prov/m4" {
			t.Errorf("failed member %s was asked to rank", c.model)
		}
	}
	if n := len(client.callsMatching("FINAL RANKING:")); n != 2 {
		t.Errorf("ranking calls = %d, want 2", n)
	}
}

func TestRun_AllMembersFailed(t *testing.T) {
	failing := map[string]bool{}
	for _, m := range testCouncil {
		failing[m] = true
	}
	client := &fakeModelClient{respond: scriptedRespond(failing)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q", IsFirstMessage: true})

	want := []EventType{EventStage1Start, EventError}
	got := eventTypes(events)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	if events[1].Message != AllModelsFailedMessage {
		t.Errorf("error message = %q, want %q", events[1].Message, AllModelsFailedMessage)
	}
	assertOneTerminal(t, events)

	// Nothing past stage 1 may run, title included.
	if n := len(client.callsMatching("Chairman")); n != 0 {
		t.Errorf("chairman called %d times after total failure", n)
	}
	if n := len(client.callsMatching("very short title")); n != 0 {
		t.Errorf("title model called %d times after total failure", n)
	}
}

func TestRun_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{
			name:    "empty content",
			req:     Request{APIKey: "sk-test", Content: "   "},
			wantMsg: "content cannot be empty",
		},
		{
			name:    "missing credential",
			req:     Request{Content: "q"},
			wantMsg: "missing API credential",
		},
		{
			name: "oversized council",
			req: Request{APIKey: "sk-test", Content: "q", CouncilModels: []string{
				"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9", "m10", "m11",
			}},
			wantMsg: "too many council_models (max 10)",
		},
		{
			name: "bad context role",
			req: Request{APIKey: "sk-test", Content: "q",
				Context: []openrouter.Message{{Role: "system", Content: "x"}}},
			wantMsg: "conversation_context[0] role must be 'user' or 'assistant'",
		},
		{
			name: "oversized context message",
			req: Request{APIKey: "sk-test", Content: "q",
				Context: []openrouter.Message{{Role: "user", Content: strings.Repeat("x", 5001)}}},
			wantMsg: "conversation_context[0] content too large (max 5000 chars)",
		},
		{
			name:    "oversized content",
			req:     Request{APIKey: "sk-test", Content: strings.Repeat("x", 30001)},
			wantMsg: "content too large (max 30000 chars)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeModelClient{respond: scriptedRespond(nil)}
			p := newTestPipeline(t, client)

			events := runAndCollect(t, p, tt.req)

			if len(events) != 1 || events[0].Type != EventError {
				t.Fatalf("events = %v, want single error event", eventTypes(events))
			}
			if events[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", events[0].Message, tt.wantMsg)
			}
			if len(client.calls) != 0 {
				t.Errorf("rejected request reached %d model calls", len(client.calls))
			}
		})
	}
}

func TestRun_ContextTotalCap(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	// Six turns of 4500 chars: each within the per-message cap, 27000 total.
	var history []openrouter.Message
	for i := 0; i < 6; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, openrouter.Message{Role: role, Content: strings.Repeat("x", 4500)})
	}

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q", Context: history})

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %v, want single error event", eventTypes(events))
	}
	if want := "conversation_context too large (max 25000 chars total)"; events[0].Message != want {
		t.Errorf("message = %q, want %q", events[0].Message, want)
	}
}

type denyPolicy struct{ blocked string }

func (d denyPolicy) Allowed(model string) bool { return model != d.blocked }

func TestRun_ModelPolicy(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p, err := New(Config{
		Client:          client,
		DefaultCouncil:  testCouncil,
		DefaultChairman: "prov/chair",
		Policy:          denyPolicy{blocked: "evil/model"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := runAndCollect(t, p, Request{
		APIKey:        "sk-test",
		Content:       "q",
		CouncilModels: []string{"prov/m1", "evil/model"},
	})

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %v, want single error event", eventTypes(events))
	}
	if want := "model not allowed: evil/model"; events[0].Message != want {
		t.Errorf("message = %q, want %q", events[0].Message, want)
	}
}

func TestRun_ChairmanFailureDegrades(t *testing.T) {
	base := scriptedRespond(nil)
	client := &fakeModelClient{respond: func(model, prompt string) (string, error) {
		if strings.Contains(prompt, "Chairman of an LLM Council") {
			return "", errors.New("chairman down")
		}
		return base(model, prompt)
	}}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q"})

	assertOneTerminal(t, events)
	if last := events[len(events)-1]; last.Type != EventComplete {
		t.Fatalf("terminal = %s, want complete", last.Type)
	}
	for _, ev := range events {
		if ev.Type == EventStage3Complete {
			syn := ev.Data.(Synthesis)
			if syn.Response != SynthesisFailedText {
				t.Errorf("synthesis = %q, want sentinel", syn.Response)
			}
			if syn.Model != "prov/chair" {
				t.Errorf("synthesis model = %q", syn.Model)
			}
		}
	}
}

func TestRun_TitleFailureSkipsSilently(t *testing.T) {
	base := scriptedRespond(nil)
	client := &fakeModelClient{respond: func(model, prompt string) (string, error) {
		if strings.Contains(prompt, "very short title") {
			return "", errors.New("title model down")
		}
		return base(model, prompt)
	}}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q", IsFirstMessage: true})

	got := eventTypes(events)
	for _, typ := range got {
		if typ == EventTitleComplete {
			t.Fatalf("title_complete present despite title failure: %v", got)
		}
	}
	if got[len(got)-1] != EventComplete {
		t.Fatalf("terminal = %s, want complete", got[len(got)-1])
	}
}

func TestRun_NoTitleForFollowUpMessage(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q", IsFirstMessage: false})

	for _, ev := range events {
		if ev.Type == EventTitleComplete {
			t.Fatal("title_complete emitted for a follow-up message")
		}
	}
	if n := len(client.callsMatching("very short title")); n != 0 {
		t.Errorf("title model called %d times for a follow-up message", n)
	}
}

func TestRun_TitleEventCarriesCleanedTitle(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{APIKey: "sk-test", Content: "q", IsFirstMessage: true})

	found := false
	for _, ev := range events {
		if ev.Type == EventTitleComplete {
			found = true
			data := ev.Data.(TitleData)
			if data.Title != "Channels In Go" {
				t.Errorf("title = %q, want quotes stripped", data.Title)
			}
		}
	}
	if !found {
		t.Fatal("no title_complete event for first message")
	}
}

func TestRun_DuplicateCouncilMembersAllowed(t *testing.T) {
	client := &fakeModelClient{respond: scriptedRespond(nil)}
	p := newTestPipeline(t, client)

	events := runAndCollect(t, p, Request{
		APIKey:        "sk-test",
		Content:       "q",
		CouncilModels: []string{"prov/m1", "prov/m1"},
	})

	for _, ev := range events {
		if ev.Type == EventStage1Complete {
			responses := ev.Data.([]StageResponse)
			if len(responses) != 2 {
				t.Errorf("duplicate members collapsed: got %d responses, want 2", len(responses))
			}
		}
	}
	if last := events[len(events)-1]; last.Type != EventComplete {
		t.Fatalf("terminal = %s, want complete", last.Type)
	}
}

func TestRun_CanceledConsumerStopsRun(t *testing.T) {
	release := make(chan struct{})
	client := &fakeModelClient{respond: func(model, prompt string) (string, error) {
		<-release
		return "late answer", nil
	}}
	p := newTestPipeline(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	events := p.Run(ctx, Request{APIKey: "sk-test", Content: "q"})

	if ev := <-events; ev.Type != EventStage1Start {
		t.Fatalf("first event = %s, want stage1_start", ev.Type)
	}
	cancel()
	close(release)

	// The channel must close without delivering a terminal to a consumer
	// that already went away.
	for ev := range events {
		if ev.Terminal() {
			t.Errorf("terminal event %s delivered after cancellation", ev.Type)
		}
	}
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{DefaultCouncil: testCouncil, DefaultChairman: "c"}); err == nil {
		t.Error("New accepted a nil Client")
	}
	if _, err := New(Config{Client: &fakeModelClient{}, DefaultChairman: "c"}); err == nil {
		t.Error("New accepted an empty default council")
	}
	if _, err := New(Config{Client: &fakeModelClient{}, DefaultCouncil: testCouncil}); err == nil {
		t.Error("New accepted an empty default chairman")
	}
}
