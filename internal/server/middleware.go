package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/llmcouncil/councild/internal/logging"
)

const (
	apiKeyHeader    = "X-OpenRouter-Api-Key"
	requestIDHeader = "X-Request-Id"

	missingKeyDetail = "Missing X-OpenRouter-Api-Key header"
	rateLimitDetail  = "Rate limit exceeded. Please try again later."
)

// requestID tags every request with a generated id, echoed in the response
// headers and attached to the request logger.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// requestLogger returns the server logger bound to this request's id.
func (s *Server) requestLogger(c *gin.Context) *logging.Logger {
	id, _ := c.Get("request_id")
	rid, _ := id.(string)
	return s.logger.WithRequest(rid)
}

// rateLimiter is a sliding-window counter keyed by client address. The
// window holds raw hit timestamps; with a 30-request cap per key the
// memory cost is negligible and eviction is done inline on each check.
type rateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// allow records a hit for key and reports whether it is within budget.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.max {
		rl.hits[key] = recent
		return false
	}
	rl.hits[key] = append(recent, now)
	return true
}

// rateLimit rejects clients that exceed the per-address request budget.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			s.requestLogger(c).Warn("rate limit exceeded", "client", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": rateLimitDetail})
			return
		}
		c.Next()
	}
}
