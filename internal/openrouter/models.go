package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/llmcouncil/councild/internal/errors"
)

// modelListTimeout bounds the models listing call.
const modelListTimeout = 30 * time.Second

// ModelInfo describes one model available through the upstream API.
type ModelInfo struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	Pricing             map[string]any `json:"pricing"`
	ContextLength       *int           `json:"context_length"`
	SupportedParameters []string       `json:"supported_parameters"`
	Provider            string         `json:"provider"`
	Created             *int64         `json:"created"`
}

type modelListResponse struct {
	Data []struct {
		ID                  string         `json:"id"`
		Name                string         `json:"name"`
		Description         string         `json:"description"`
		Pricing             map[string]any `json:"pricing"`
		ContextLength       *int           `json:"context_length"`
		SupportedParameters []string       `json:"supported_parameters"`
		OwnedBy             string         `json:"owned_by"`
		Created             *int64         `json:"created"`
	} `json:"data"`
}

// ListModels fetches the available models using the caller's credential.
// The provider field is derived from the id prefix when the upstream omits
// an owner (e.g. "openai/gpt-4" -> "openai").
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, modelListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Wrap(err, "building models request")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching models")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching models: upstream status %d", resp.StatusCode)
	}

	var decoded modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding models response")
	}

	models := make([]ModelInfo, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		provider := m.OwnedBy
		if provider == "" {
			if idx := strings.Index(m.ID, "/"); idx > 0 {
				provider = m.ID[:idx]
			}
		}

		name := m.Name
		if name == "" {
			name = m.ID
		}

		pricing := m.Pricing
		if pricing == nil {
			pricing = map[string]any{}
		}
		params := m.SupportedParameters
		if params == nil {
			params = []string{}
		}

		models = append(models, ModelInfo{
			ID:                  m.ID,
			Name:                name,
			Description:         m.Description,
			Pricing:             pricing,
			ContextLength:       m.ContextLength,
			SupportedParameters: params,
			Provider:            provider,
			Created:             m.Created,
		})
	}

	return models, nil
}
