package council

import (
	"fmt"
	"strings"

	"github.com/llmcouncil/councild/internal/errors"
)

// validate checks a request against the configured limits and returns a
// normalized copy with defaults applied. Validation happens entirely
// before stage 1; a rejected request never reaches any model backend.
func (p *Pipeline) validate(req Request) (Request, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return Request{}, errors.NewValidationError("missing API credential").
			WithField("api_key").
			WithCause(errors.ErrMissingCredential)
	}
	if strings.TrimSpace(req.Content) == "" {
		return Request{}, errors.NewValidationError("content cannot be empty").
			WithField("content").
			WithCause(errors.ErrEmptyContent)
	}
	if len(req.Content) > p.cfg.MaxContentChars {
		return Request{}, errors.NewValidationError(
			fmt.Sprintf("content too large (max %d chars)", p.cfg.MaxContentChars)).
			WithField("content").
			WithCause(errors.ErrContentTooLarge)
	}

	norm := req
	if len(norm.CouncilModels) == 0 {
		norm.CouncilModels = append([]string(nil), p.cfg.DefaultCouncil...)
	}
	if norm.ChairmanModel == "" {
		norm.ChairmanModel = p.cfg.DefaultChairman
	}

	if len(norm.CouncilModels) > p.cfg.MaxCouncilSize {
		return Request{}, errors.NewValidationError(
			fmt.Sprintf("too many council_models (max %d)", p.cfg.MaxCouncilSize)).
			WithField("council_models").
			WithValue(len(norm.CouncilModels)).
			WithCause(errors.ErrCouncilTooLarge)
	}

	if p.cfg.Policy != nil {
		for _, model := range norm.CouncilModels {
			if !p.cfg.Policy.Allowed(model) {
				return Request{}, errors.NewValidationError("model not allowed: " + model).
					WithField("council_models").
					WithValue(model).
					WithCause(errors.ErrModelNotAllowed)
			}
		}
		if !p.cfg.Policy.Allowed(norm.ChairmanModel) {
			return Request{}, errors.NewValidationError("model not allowed: " + norm.ChairmanModel).
				WithField("chairman_model").
				WithValue(norm.ChairmanModel).
				WithCause(errors.ErrModelNotAllowed)
		}
	}

	total := 0
	for i, m := range norm.Context {
		if m.Role != "user" && m.Role != "assistant" {
			return Request{}, errors.NewValidationError(
				fmt.Sprintf("conversation_context[%d] role must be 'user' or 'assistant'", i)).
				WithField("conversation_context").
				WithValue(m.Role).
				WithCause(errors.ErrInvalidContextRole)
		}
		if len(m.Content) > p.cfg.MaxContextMessageChars {
			return Request{}, errors.NewValidationError(
				fmt.Sprintf("conversation_context[%d] content too large (max %d chars)", i, p.cfg.MaxContextMessageChars)).
				WithField("conversation_context").
				WithCause(errors.ErrContextTooLarge)
		}
		total += len(m.Content)
	}
	if total > p.cfg.MaxContextTotalChars {
		return Request{}, errors.NewValidationError(
			fmt.Sprintf("conversation_context too large (max %d chars total)", p.cfg.MaxContextTotalChars)).
			WithField("conversation_context").
			WithValue(total).
			WithCause(errors.ErrContextTooLarge)
	}

	return norm, nil
}
