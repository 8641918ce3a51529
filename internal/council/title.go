package council

import (
	"context"
	"strings"

	"github.com/llmcouncil/councild/internal/logging"
	"github.com/llmcouncil/councild/internal/openrouter"
)

// titleMaxRunes caps a generated conversation title.
const titleMaxRunes = 50

// generateTitle asks the title model for a short conversation title. The
// call runs under the short title timeout and never receives conversation
// context. Any failure, or an answer that normalizes to nothing, skips the
// title silently; the run completes either way.
func (p *Pipeline) generateTitle(ctx context.Context, log *logging.Logger, req Request) (string, bool) {
	raw, err := p.cfg.Client.Complete(ctx, req.APIKey, p.cfg.TitleModel,
		[]openrouter.Message{{Role: "user", Content: titlePrompt(req.Content)}},
		p.cfg.TitleTimeout)
	if err != nil {
		log.Warn("title generation failed", "error", err)
		return "", false
	}

	title := CleanTitle(raw)
	if title == "" {
		log.Debug("title model returned nothing usable")
		return "", false
	}
	return title, true
}

// CleanTitle normalizes a raw title completion: trims surrounding
// whitespace, strips one wrapping quote character from each end, and
// truncates to titleMaxRunes runes.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if len(title) > 0 && (title[0] == '"' || title[0] == '\'') {
		title = title[1:]
	}
	if len(title) > 0 && (title[len(title)-1] == '"' || title[len(title)-1] == '\'') {
		title = title[:len(title)-1]
	}
	if runes := []rune(title); len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}
	return title
}
