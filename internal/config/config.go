// Package config defines the councild configuration, its documented
// defaults, and viper-backed loading. Every constant the pipeline depends
// on (default council, chairman, timeouts, size caps) lives here and is
// passed into the controller at construction; there is no module-level
// mutable state.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete councild configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Council CouncilConfig `mapstructure:"council"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	// Listen is the address the HTTP server binds to
	Listen string `mapstructure:"listen"`
	// AllowedOrigins is the list of CORS origins permitted to call the API
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// RateLimitWindowSeconds is the sliding-window length for rate limiting
	RateLimitWindowSeconds int `mapstructure:"rate_limit_window_seconds"`
	// RateLimitMaxRequests is the number of requests allowed per window per client IP
	RateLimitMaxRequests int `mapstructure:"rate_limit_max_requests"`
}

// CouncilConfig controls the council pipeline
type CouncilConfig struct {
	// DefaultModels is the council queried when a request names none
	DefaultModels []string `mapstructure:"default_models"`
	// DefaultChairman is the synthesis model used when a request names none
	DefaultChairman string `mapstructure:"default_chairman"`
	// TitleModel is the fixed lightweight model used for title generation
	TitleModel string `mapstructure:"title_model"`
	// MaxCouncilSize caps the number of council members per request
	MaxCouncilSize int `mapstructure:"max_council_size"`
	// ResponseTimeoutSeconds is the per-branch budget for content calls
	ResponseTimeoutSeconds int `mapstructure:"response_timeout_seconds"`
	// TitleTimeoutSeconds is the budget for the title call
	TitleTimeoutSeconds int `mapstructure:"title_timeout_seconds"`
	// AllowedModelPatterns restricts model identifiers to these glob
	// patterns. Empty means any model is allowed.
	AllowedModelPatterns []string `mapstructure:"allowed_model_patterns"`
	// BaseURL is the OpenRouter-compatible API root
	BaseURL string `mapstructure:"base_url"`
}

// LimitsConfig controls request validation caps
type LimitsConfig struct {
	// MaxContentChars caps the query text length
	MaxContentChars int `mapstructure:"max_content_chars"`
	// MaxContextMessageChars caps one prior-turn message
	MaxContextMessageChars int `mapstructure:"max_context_message_chars"`
	// MaxContextTotalChars caps the cumulative prior-turn text
	MaxContextTotalChars int `mapstructure:"max_context_total_chars"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir is where the JSON log file is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// StorageConfig controls the conversation collaborator
type StorageConfig struct {
	// ConversationsDir is where the file-backed conversation store keeps
	// its JSON documents; empty disables conversation persistence.
	ConversationsDir string `mapstructure:"conversations_dir"`
}

// ResponseTimeout returns the per-branch content-call budget as a Duration.
func (c *CouncilConfig) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutSeconds) * time.Second
}

// TitleTimeout returns the title-call budget as a Duration.
func (c *CouncilConfig) TitleTimeout() time.Duration {
	return time.Duration(c.TitleTimeoutSeconds) * time.Second
}

// RateLimitWindow returns the rate-limit window as a Duration.
func (s *ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(s.RateLimitWindowSeconds) * time.Second
}

// Default returns the configuration with all documented default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8001",
			AllowedOrigins: []string{
				"http://localhost:5173", // Local development
				"http://localhost:3000", // Alternative local port
			},
			RateLimitWindowSeconds: 30,
			RateLimitMaxRequests:   30,
		},
		Council: CouncilConfig{
			DefaultModels: []string{
				"x-ai/grok-4.1-fast",
				"openai/gpt-5.2-chat",
				"anthropic/claude-haiku-4.5",
				"google/gemini-3-flash-preview",
			},
			DefaultChairman:        "openai/gpt-5.2-chat",
			TitleModel:             "google/gemini-2.5-flash",
			MaxCouncilSize:         10,
			ResponseTimeoutSeconds: 120,
			TitleTimeoutSeconds:    30,
			AllowedModelPatterns:   []string{},
			BaseURL:                "https://openrouter.ai/api/v1",
		},
		Limits: LimitsConfig{
			MaxContentChars:        30000,
			MaxContextMessageChars: 5000,
			MaxContextTotalChars:   25000,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Storage: StorageConfig{
			ConversationsDir: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.listen", defaults.Server.Listen)
	viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	viper.SetDefault("server.rate_limit_window_seconds", defaults.Server.RateLimitWindowSeconds)
	viper.SetDefault("server.rate_limit_max_requests", defaults.Server.RateLimitMaxRequests)

	viper.SetDefault("council.default_models", defaults.Council.DefaultModels)
	viper.SetDefault("council.default_chairman", defaults.Council.DefaultChairman)
	viper.SetDefault("council.title_model", defaults.Council.TitleModel)
	viper.SetDefault("council.max_council_size", defaults.Council.MaxCouncilSize)
	viper.SetDefault("council.response_timeout_seconds", defaults.Council.ResponseTimeoutSeconds)
	viper.SetDefault("council.title_timeout_seconds", defaults.Council.TitleTimeoutSeconds)
	viper.SetDefault("council.allowed_model_patterns", defaults.Council.AllowedModelPatterns)
	viper.SetDefault("council.base_url", defaults.Council.BaseURL)

	viper.SetDefault("limits.max_content_chars", defaults.Limits.MaxContentChars)
	viper.SetDefault("limits.max_context_message_chars", defaults.Limits.MaxContextMessageChars)
	viper.SetDefault("limits.max_context_total_chars", defaults.Limits.MaxContextTotalChars)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("storage.conversations_dir", defaults.Storage.ConversationsDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "councild")
	}
	// Fall back to ~/.config/councild
	home, err := os.UserHomeDir()
	if err != nil {
		return ".councild"
	}
	return filepath.Join(home, ".config", "councild")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
