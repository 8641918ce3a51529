package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "council.run.started").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Council Run Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when a council run begins, after validation.
type RunStartedEvent struct {
	baseEvent
	RequestID   string   // Unique identifier for this run
	CouncilSize int      // Number of council members queried
	Chairman    string   // Chairman model identifier
	Council     []string // Council model identifiers
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(requestID string, council []string, chairman string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:   newBaseEvent("council.run.started"),
		RequestID:   requestID,
		CouncilSize: len(council),
		Chairman:    chairman,
		Council:     council,
	}
}

// StageCompletedEvent is emitted when one pipeline stage finishes.
type StageCompletedEvent struct {
	baseEvent
	RequestID string // Run this stage belongs to
	Stage     string // "stage1", "stage2" or "stage3"
	Responses int    // Number of successful branch results in this stage
	Failures  int    // Number of branches that errored or timed out
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(requestID, stage string, responses, failures int) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent("council.stage.completed"),
		RequestID: requestID,
		Stage:     stage,
		Responses: responses,
		Failures:  failures,
	}
}

// TitleGeneratedEvent is emitted when the optional title call produced a
// usable title. Failed or skipped title calls emit nothing.
type TitleGeneratedEvent struct {
	baseEvent
	RequestID string
	Title     string
}

// NewTitleGeneratedEvent creates a TitleGeneratedEvent.
func NewTitleGeneratedEvent(requestID, title string) TitleGeneratedEvent {
	return TitleGeneratedEvent{
		baseEvent: newBaseEvent("council.title.generated"),
		RequestID: requestID,
		Title:     title,
	}
}

// RunFinishedEvent is emitted when a run reaches its terminal event.
type RunFinishedEvent struct {
	baseEvent
	RequestID string        // Run identifier
	Success   bool          // true for `complete`, false for `error`
	Error     string        // Error message when Success is false
	Duration  time.Duration // Wall-clock duration of the run
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(requestID string, success bool, errMsg string, duration time.Duration) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent("council.run.finished"),
		RequestID: requestID,
		Success:   success,
		Error:     errMsg,
		Duration:  duration,
	}
}
