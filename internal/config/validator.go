package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "council.max_council_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Server.Listen == "" {
		errors = append(errors, ValidationError{
			Field:   "server.listen",
			Value:   c.Server.Listen,
			Message: "listen address cannot be empty",
		})
	}
	if c.Server.RateLimitWindowSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit_window_seconds",
			Value:   c.Server.RateLimitWindowSeconds,
			Message: "must be positive",
		})
	}
	if c.Server.RateLimitMaxRequests <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit_max_requests",
			Value:   c.Server.RateLimitMaxRequests,
			Message: "must be positive",
		})
	}

	if len(c.Council.DefaultModels) == 0 {
		errors = append(errors, ValidationError{
			Field:   "council.default_models",
			Value:   c.Council.DefaultModels,
			Message: "at least one default council model is required",
		})
	}
	if c.Council.MaxCouncilSize < 1 || c.Council.MaxCouncilSize > 10 {
		errors = append(errors, ValidationError{
			Field:   "council.max_council_size",
			Value:   c.Council.MaxCouncilSize,
			Message: "must be between 1 and 10",
		})
	}
	if len(c.Council.DefaultModels) > c.Council.MaxCouncilSize {
		errors = append(errors, ValidationError{
			Field:   "council.default_models",
			Value:   len(c.Council.DefaultModels),
			Message: fmt.Sprintf("more default models than max_council_size (%d)", c.Council.MaxCouncilSize),
		})
	}
	if c.Council.DefaultChairman == "" {
		errors = append(errors, ValidationError{
			Field:   "council.default_chairman",
			Value:   c.Council.DefaultChairman,
			Message: "chairman model cannot be empty",
		})
	}
	if c.Council.ResponseTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "council.response_timeout_seconds",
			Value:   c.Council.ResponseTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Council.TitleTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "council.title_timeout_seconds",
			Value:   c.Council.TitleTimeoutSeconds,
			Message: "must be positive",
		})
	}
	for _, pattern := range c.Council.AllowedModelPatterns {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "council.allowed_model_patterns",
				Value:   pattern,
				Message: "invalid glob pattern",
			})
		}
	}
	if matcher, err := c.Council.ModelMatcher(); err == nil {
		for _, model := range c.Council.DefaultModels {
			if !matcher.Allowed(model) {
				errors = append(errors, ValidationError{
					Field:   "council.default_models",
					Value:   model,
					Message: "default model excluded by allowed_model_patterns",
				})
			}
		}
		if !matcher.Allowed(c.Council.DefaultChairman) {
			errors = append(errors, ValidationError{
				Field:   "council.default_chairman",
				Value:   c.Council.DefaultChairman,
				Message: "chairman excluded by allowed_model_patterns",
			})
		}
	}

	if c.Limits.MaxContentChars <= 0 {
		errors = append(errors, ValidationError{
			Field:   "limits.max_content_chars",
			Value:   c.Limits.MaxContentChars,
			Message: "must be positive",
		})
	}
	if c.Limits.MaxContextMessageChars <= 0 {
		errors = append(errors, ValidationError{
			Field:   "limits.max_context_message_chars",
			Value:   c.Limits.MaxContextMessageChars,
			Message: "must be positive",
		})
	}
	if c.Limits.MaxContextTotalChars < c.Limits.MaxContextMessageChars {
		errors = append(errors, ValidationError{
			Field:   "limits.max_context_total_chars",
			Value:   c.Limits.MaxContextTotalChars,
			Message: "must be at least max_context_message_chars",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// ModelMatcher compiles the allow patterns into a matcher. An empty pattern
// list yields a matcher that allows everything.
type ModelMatcher struct {
	globs []glob.Glob
}

// ModelMatcher builds the matcher for this council configuration.
func (c *CouncilConfig) ModelMatcher() (*ModelMatcher, error) {
	m := &ModelMatcher{}
	for _, pattern := range c.AllowedModelPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling model pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Allowed reports whether the model identifier matches the allow patterns.
func (m *ModelMatcher) Allowed(model string) bool {
	if len(m.globs) == 0 {
		return true
	}
	for _, g := range m.globs {
		if g.Match(model) {
			return true
		}
	}
	return false
}
