package council

import (
	"context"

	"github.com/llmcouncil/councild/internal/logging"
	"github.com/llmcouncil/councild/internal/openrouter"
)

type branchResult struct {
	model string
	text  string
	err   error
}

// dispatchAll fans one message list out to every listed model concurrently
// and waits for all branches to settle. Successes are collected in arrival
// order, which is what downstream label assignment uses; failures are
// logged, counted, and otherwise dropped. No branch is retried and no
// failure cancels a sibling.
func (p *Pipeline) dispatchAll(ctx context.Context, log *logging.Logger, apiKey string, models []string, messages []openrouter.Message) ([]StageResponse, int) {
	results := make(chan branchResult, len(models))
	for _, model := range models {
		model := model
		go func() {
			text, err := p.cfg.Client.Complete(ctx, apiKey, model, messages, p.cfg.ResponseTimeout)
			results <- branchResult{model: model, text: text, err: err}
		}()
	}

	responses := make([]StageResponse, 0, len(models))
	failures := 0
	for range models {
		res := <-results
		if res.err != nil {
			failures++
			log.WithModel(res.model).Warn("council member failed", "error", res.err)
			continue
		}
		responses = append(responses, StageResponse{Model: res.model, Response: res.text})
	}
	return responses, failures
}

// appendTurn copies history and appends one turn, leaving the caller's
// slice untouched.
func appendTurn(history []openrouter.Message, role, content string) []openrouter.Message {
	out := make([]openrouter.Message, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, openrouter.Message{Role: role, Content: content})
	return out
}
