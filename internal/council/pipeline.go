package council

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/event"
	"github.com/llmcouncil/councild/internal/logging"
	"github.com/llmcouncil/councild/internal/openrouter"
)

// Config holds the pipeline's dependencies and limits. Client is required;
// zero-valued limits get the standard defaults from New.
type Config struct {
	Client          ModelClient
	DefaultCouncil  []string
	DefaultChairman string
	TitleModel      string

	ResponseTimeout time.Duration
	TitleTimeout    time.Duration

	MaxCouncilSize         int
	MaxContentChars        int
	MaxContextMessageChars int
	MaxContextTotalChars   int

	// Policy restricts requestable model identifiers. Nil allows all.
	Policy ModelPolicy

	Logger *logging.Logger
	// Bus, when set, receives run lifecycle events for observers. It is
	// separate from the per-run Event stream consumed by the caller.
	Bus *event.Bus
}

// Pipeline runs council exchanges. A single Pipeline is safe for
// concurrent Runs; all per-run state lives on the goroutine Run spawns.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline, applying defaults for unset limits.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, errors.New("council: Config.Client is required")
	}
	if len(cfg.DefaultCouncil) == 0 {
		return nil, errors.New("council: Config.DefaultCouncil is required")
	}
	if cfg.DefaultChairman == "" {
		return nil, errors.New("council: Config.DefaultChairman is required")
	}

	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 120 * time.Second
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = 30 * time.Second
	}
	if cfg.MaxCouncilSize <= 0 {
		cfg.MaxCouncilSize = 10
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 30000
	}
	if cfg.MaxContextMessageChars <= 0 {
		cfg.MaxContextMessageChars = 5000
	}
	if cfg.MaxContextTotalChars <= 0 {
		cfg.MaxContextTotalChars = 25000
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = "google/gemini-2.5-flash"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}

	return &Pipeline{cfg: cfg}, nil
}

// Run starts one council exchange and returns its event stream. The
// channel is unbuffered and closed after the terminal event; callers must
// drain it. Canceling ctx abandons the run: in-flight branches unwind via
// their request contexts and no further events are delivered.
func (p *Pipeline) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		p.run(ctx, req, events)
	}()
	return events
}

func (p *Pipeline) run(ctx context.Context, req Request, events chan<- Event) {
	requestID := uuid.NewString()
	log := p.cfg.Logger.WithRequest(requestID)
	start := time.Now()

	state := StateValidating
	setState := func(next State) {
		log.Debug("state transition", "from", string(state), "to", string(next))
		state = next
	}

	// emit delivers one event, refusing a second terminal and bailing out
	// if the consumer is gone. Every emission of a non-final event checks
	// the return so an abandoned run stops doing work.
	emitted := 0
	terminal := false
	emit := func(ev Event) bool {
		if ev.Terminal() {
			if terminal {
				return false
			}
			terminal = true
		}
		// A canceled consumer gets nothing more, even if it is still
		// draining the channel.
		select {
		case <-ctx.Done():
			return false
		default:
		}
		select {
		case events <- ev:
			emitted++
			return true
		case <-ctx.Done():
			return false
		}
	}

	publish := func(ev event.Event) {
		if p.cfg.Bus != nil {
			p.cfg.Bus.Publish(ev)
		}
	}
	finish := func(success bool, errMsg string) {
		publish(event.NewRunFinishedEvent(requestID, success, errMsg, time.Since(start)))
	}

	norm, err := p.validate(req)
	if err != nil {
		msg := errors.UserMessage(err)
		log.Warn("request rejected", "error", err)
		setState(StateError)
		emit(Event{Type: EventError, Message: msg})
		finish(false, msg)
		return
	}

	publish(event.NewRunStartedEvent(requestID, norm.CouncilModels, norm.ChairmanModel))
	log.Info("council run started",
		"council_size", len(norm.CouncilModels),
		"chairman", norm.ChairmanModel,
		"first_message", norm.IsFirstMessage)

	// Stage 1: every member answers the user's question independently.
	setState(StateStage1)
	if !emit(Event{Type: EventStage1Start}) {
		return
	}
	stage1Messages := appendTurn(norm.Context, "user", norm.Content)
	responses, stage1Failures := p.dispatchAll(ctx, log.WithStage("stage1"), norm.APIKey, norm.CouncilModels, stage1Messages)
	publish(event.NewStageCompletedEvent(requestID, "stage1", len(responses), stage1Failures))

	if len(responses) == 0 {
		if ctx.Err() != nil {
			// Consumer disconnected mid-fan-out; there is nobody left to
			// receive a terminal event.
			log.Info("run abandoned during stage1")
			return
		}
		log.Error("no council member responded", "failures", stage1Failures)
		setState(StateError)
		emit(Event{Type: EventError, Message: AllModelsFailedMessage})
		finish(false, AllModelsFailedMessage)
		return
	}
	if !emit(Event{Type: EventStage1Complete, Data: responses}) {
		return
	}

	// Stage 2: the members that answered judge the anonymized answers.
	// A judge evaluating its own (anonymized) response is accepted bias.
	setState(StateStage2)
	if !emit(Event{Type: EventStage2Start}) {
		return
	}
	labels, labelToModel := assignLabels(responses)
	judges := make([]string, len(responses))
	for i, r := range responses {
		judges[i] = r.Model
	}
	stage2Messages := appendTurn(norm.Context, "user", rankingPrompt(norm.Content, labels, responses))
	rawJudgments, stage2Failures := p.dispatchAll(ctx, log.WithStage("stage2"), norm.APIKey, judges, stage2Messages)

	judgments := make([]RankingJudgment, 0, len(rawJudgments))
	for _, r := range rawJudgments {
		judgments = append(judgments, RankingJudgment{
			Model:         r.Model,
			Ranking:       r.Response,
			ParsedRanking: ParseRanking(r.Response),
		})
	}
	aggregate := AggregateRankings(judgments, labelToModel)
	publish(event.NewStageCompletedEvent(requestID, "stage2", len(judgments), stage2Failures))

	// Stage-2 total failure is not fatal: the run proceeds with an empty
	// judgment set and the chairman synthesizes from stage 1 alone.
	if !emit(Event{
		Type:     EventStage2Complete,
		Data:     judgments,
		Metadata: &Stage2Metadata{LabelToModel: labelToModel, AggregateRankings: aggregate},
	}) {
		return
	}

	// Stage 3: the chairman synthesizes, de-anonymized.
	setState(StateStage3)
	if !emit(Event{Type: EventStage3Start}) {
		return
	}
	synthesis := p.synthesize(ctx, log.WithStage("stage3"), norm, responses, judgments)
	publish(event.NewStageCompletedEvent(requestID, "stage3", 1, 0))
	if !emit(Event{Type: EventStage3Complete, Data: synthesis}) {
		return
	}

	// Optional title, first message of a conversation only.
	if norm.IsFirstMessage {
		setState(StateTitle)
		if title, ok := p.generateTitle(ctx, log.WithStage("title"), norm); ok {
			if !emit(Event{Type: EventTitleComplete, Data: TitleData{Title: title}}) {
				return
			}
			publish(event.NewTitleGeneratedEvent(requestID, title))
		}
	}

	setState(StateComplete)
	emit(Event{Type: EventComplete})
	log.Info("council run finished", "events", emitted, "duration", time.Since(start).String())
	finish(true, "")
}

// synthesize runs the chairman call. Chairman failure degrades to the
// sentinel text rather than failing the run.
func (p *Pipeline) synthesize(ctx context.Context, log *logging.Logger, req Request, responses []StageResponse, judgments []RankingJudgment) Synthesis {
	prompt := chairmanPrompt(req.Content, responses, judgments)
	messages := appendTurn(req.Context, "user", prompt)

	text, err := p.cfg.Client.Complete(ctx, req.APIKey, req.ChairmanModel, messages, p.cfg.ResponseTimeout)
	if err != nil {
		log.Warn("chairman synthesis failed", "error", err)
		return Synthesis{Model: req.ChairmanModel, Response: SynthesisFailedText}
	}
	return Synthesis{Model: req.ChairmanModel, Response: text}
}

var _ ModelClient = (*openrouter.Client)(nil)
