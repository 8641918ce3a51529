// Package server exposes the council pipeline over HTTP: the SSE council
// endpoint, the model listing passthrough, conversation CRUD, and a health
// probe. Transport concerns live here; the server holds no credentials and
// forwards the caller's key per request.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/llmcouncil/councild/internal/config"
	"github.com/llmcouncil/councild/internal/conversation"
	"github.com/llmcouncil/councild/internal/council"
	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/logging"
	"github.com/llmcouncil/councild/internal/openrouter"
)

// shutdownTimeout bounds graceful drain on exit.
const shutdownTimeout = 10 * time.Second

// Server wires the pipeline, the upstream client, and the conversation
// store behind a gin router.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	client  *openrouter.Client
	store   conversation.Store
	engine  *gin.Engine
	limiter *rateLimiter

	// pipeline is swappable so a config reload can rebuild it without
	// interrupting in-flight streams, which keep their old pipeline.
	pipeline atomic.Pointer[council.Pipeline]
}

// New builds the server and its routes. store may be nil, which disables
// conversation persistence and its endpoints return 404.
func New(cfg *config.Config, pipeline *council.Pipeline, client *openrouter.Client, store conversation.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		engine:  engine,
		limiter: newRateLimiter(cfg.Server.RateLimitWindow(), cfg.Server.RateLimitMaxRequests),
	}
	s.pipeline.Store(pipeline)

	engine.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-OpenRouter-Api-Key"},
		MaxAge:       12 * time.Hour,
	}))
	engine.Use(s.requestID())

	engine.GET("/", s.handleHealth)
	engine.GET("/api/models", s.rateLimit(), s.handleListModels)
	engine.POST("/api/council/stream", s.rateLimit(), s.handleCouncilStream)

	engine.GET("/api/conversations", s.handleListConversations)
	engine.POST("/api/conversations", s.handleCreateConversation)
	engine.GET("/api/conversations/:id", s.handleGetConversation)
	engine.DELETE("/api/conversations/:id", s.handleDeleteConversation)

	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetPipeline replaces the pipeline used for new streams. In-flight runs
// finish on the pipeline they started with.
func (s *Server) SetPipeline(p *council.Pipeline) {
	s.pipeline.Store(p)
}

// Run serves until ctx is canceled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Listen,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "councild"})
}

// handleListModels proxies the upstream model catalog using the caller's
// credential.
func (s *Server) handleListModels(c *gin.Context) {
	apiKey := c.GetHeader(apiKeyHeader)
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": missingKeyDetail})
		return
	}

	models, err := s.client.ListModels(c.Request.Context(), apiKey)
	if err != nil {
		s.logger.Warn("model listing failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Failed to fetch models from OpenRouter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": models})
}
