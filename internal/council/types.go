package council

import (
	"context"
	"time"

	"github.com/llmcouncil/councild/internal/openrouter"
)

// ModelClient is the single-call abstraction the pipeline uses to reach a
// remote model backend. openrouter.Client satisfies it; tests substitute
// fakes.
type ModelClient interface {
	Complete(ctx context.Context, apiKey, model string, messages []openrouter.Message, timeout time.Duration) (string, error)
}

// ModelPolicy restricts which model identifiers a request may name.
// A nil policy allows everything.
type ModelPolicy interface {
	Allowed(model string) bool
}

// Request is one validated council run. Council members are opaque model
// identifier strings; duplicates are permitted but wasteful and are not
// deduplicated.
type Request struct {
	APIKey         string
	Content        string
	CouncilModels  []string
	ChairmanModel  string
	IsFirstMessage bool
	// Context is the bounded prior-turn history, oldest first.
	Context []openrouter.Message
}

// StageResponse is one council member's stage-1 answer. Members that
// errored or timed out produce no StageResponse.
type StageResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// RankingJudgment is one judge's evaluation of the anonymized stage-1
// responses. ParsedRanking may be shorter than the label set (partial
// ranking) or empty (unparseable); both are valid, non-error outcomes.
type RankingJudgment struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateEntry is one member's consensus position: the arithmetic mean
// of its 1-based positions across all judgments that ranked it, rounded to
// 2 decimals. Lower is preferred.
type AggregateEntry struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Synthesis is the chairman's final answer. On chairman failure Response
// holds SynthesisFailedText; synthesis never fails the exchange.
type Synthesis struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Stage2Metadata accompanies the stage2_complete event.
type Stage2Metadata struct {
	LabelToModel      map[string]string `json:"label_to_model"`
	AggregateRankings []AggregateEntry  `json:"aggregate_rankings"`
}

// TitleData accompanies the title_complete event.
type TitleData struct {
	Title string `json:"title"`
}

// State identifies where a run is in its fixed sequence.
type State string

// Run states, in order. There is no skipping and no going back; StateError
// is reachable only from StateValidating and StateStage1.
const (
	StateValidating State = "validating"
	StateStage1     State = "stage1"
	StateStage2     State = "stage2"
	StateStage3     State = "stage3"
	StateTitle      State = "title"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// EventType tags a progress event.
type EventType string

// Event types, in emission order.
const (
	EventStage1Start    EventType = "stage1_start"
	EventStage1Complete EventType = "stage1_complete"
	EventStage2Start    EventType = "stage2_start"
	EventStage2Complete EventType = "stage2_complete"
	EventStage3Start    EventType = "stage3_start"
	EventStage3Complete EventType = "stage3_complete"
	EventTitleComplete  EventType = "title_complete"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// Event is one progress event. Events are created by the pipeline
// controller only, written once, never mutated after emission, and
// consumed exactly once by the transport adapter.
type Event struct {
	Type     EventType       `json:"type"`
	Data     any             `json:"data,omitempty"`
	Metadata *Stage2Metadata `json:"metadata,omitempty"`
	Message  string          `json:"message,omitempty"`
	// Synthetic marks a completion the consumer fabricated after the
	// stream ended without a terminal event. The server never sets it.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Terminal reports whether this event ends a run.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// SynthesisFailedText is the sentinel answer substituted when the chairman
// call fails.
const SynthesisFailedText = "Error: Unable to generate final synthesis."

// AllModelsFailedMessage is the error-event message for a stage-1 total
// failure.
const AllModelsFailedMessage = "All models failed to respond. Please try again."
