package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/llmcouncil/councild/internal/conversation"
	"github.com/llmcouncil/councild/internal/council"
	"github.com/llmcouncil/councild/internal/openrouter"
	"github.com/llmcouncil/councild/internal/stream"
)

// streamRequest is the council endpoint's request body.
type streamRequest struct {
	Content             string               `json:"content"`
	CouncilModels       []string             `json:"council_models"`
	ChairmanModel       string               `json:"chairman_model"`
	IsFirstMessage      bool                 `json:"is_first_message"`
	ConversationContext []openrouter.Message `json:"conversation_context"`
	// ConversationID opts this exchange into persistence.
	ConversationID string `json:"conversation_id"`
}

// handleCouncilStream runs one council exchange over SSE. Conditions that
// map cleanly onto HTTP status codes are rejected before the stream opens;
// everything after the first byte of the body is an in-band error event.
func (s *Server) handleCouncilStream(c *gin.Context) {
	log := s.requestLogger(c)

	apiKey := c.GetHeader(apiKeyHeader)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": missingKeyDetail})
		return
	}

	var body streamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "content cannot be empty"})
		return
	}
	if max := s.cfg.Limits.MaxContentChars; len(body.Content) > max {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"detail": fmt.Sprintf("content too large (max %d chars)", max),
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Disable proxy buffering so events are not held back.
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	req := council.Request{
		APIKey:         apiKey,
		Content:        body.Content,
		CouncilModels:  body.CouncilModels,
		ChairmanModel:  body.ChairmanModel,
		IsFirstMessage: body.IsFirstMessage,
		Context:        body.ConversationContext,
	}

	w := stream.NewWriter(c.Writer)
	var rec runRecord
	for ev := range s.pipeline.Load().Run(c.Request.Context(), req) {
		rec.observe(ev)
		if err := w.Send(ev); err != nil {
			// Consumer gone. Keep draining so the run unwinds through its
			// own context; it stops emitting once it notices.
			log.Debug("stream write failed", "error", err)
		}
	}

	if body.ConversationID != "" {
		s.persistRun(c, body, rec)
	}
}

// runRecord accumulates the stage payloads of one run as its events pass
// through, for optional persistence after the stream closes.
type runRecord struct {
	stage1    []council.StageResponse
	stage2    []council.RankingJudgment
	synthesis *council.Synthesis
	title     string
	completed bool
}

func (r *runRecord) observe(ev council.Event) {
	switch ev.Type {
	case council.EventStage1Complete:
		if v, ok := ev.Data.([]council.StageResponse); ok {
			r.stage1 = v
		}
	case council.EventStage2Complete:
		if v, ok := ev.Data.([]council.RankingJudgment); ok {
			r.stage2 = v
		}
	case council.EventStage3Complete:
		if v, ok := ev.Data.(council.Synthesis); ok {
			r.synthesis = &v
		}
	case council.EventTitleComplete:
		if v, ok := ev.Data.(council.TitleData); ok {
			r.title = v.Title
		}
	case council.EventComplete:
		r.completed = true
	}
}

// persistRun appends the exchange to its conversation. Persistence is
// best-effort: the stream already ended, so failures are only logged.
func (s *Server) persistRun(c *gin.Context, body streamRequest, rec runRecord) {
	log := s.requestLogger(c)
	if s.store == nil {
		log.Debug("persistence disabled, dropping run record", "conversation_id", body.ConversationID)
		return
	}
	if !rec.completed || rec.synthesis == nil {
		return
	}
	ctx := c.Request.Context()

	if _, err := s.store.AppendMessage(ctx, body.ConversationID, conversation.Message{
		Role:    "user",
		Content: body.Content,
	}); err != nil {
		log.Warn("persisting user message failed", "conversation_id", body.ConversationID, "error", err)
		return
	}
	if _, err := s.store.AppendMessage(ctx, body.ConversationID, conversation.Message{
		Role:    "assistant",
		Content: rec.synthesis.Response,
		Stage1:  rec.stage1,
		Stage2:  rec.stage2,
		Stage3:  rec.synthesis,
	}); err != nil {
		log.Warn("persisting assistant message failed", "conversation_id", body.ConversationID, "error", err)
		return
	}
	if rec.title != "" {
		if err := s.store.SetTitle(ctx, body.ConversationID, rec.title); err != nil {
			log.Warn("persisting title failed", "conversation_id", body.ConversationID, "error", err)
		}
	}
}
