package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/llmcouncil/councild/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify councild configuration",
	Long: `View or modify councild configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  councild config set server.listen :9000
  councild config set council.default_chairman openai/gpt-5.2-chat
  councild config set limits.max_content_chars 20000

Valid keys:
  server.listen                     - HTTP listen address
  server.rate_limit_window_seconds  - Rate-limit window length
  server.rate_limit_max_requests    - Requests allowed per window per client
  council.default_chairman          - Chairman model identifier
  council.title_model               - Title generation model
  council.max_council_size          - Max council members per request
  council.response_timeout_seconds  - Per-branch response budget
  council.title_timeout_seconds     - Title call budget
  council.base_url                  - OpenRouter-compatible API root
  limits.max_content_chars          - Query text cap
  limits.max_context_message_chars  - Per prior-turn message cap
  limits.max_context_total_chars    - Cumulative prior-turn cap
  logging.level                     - debug, info, warn or error
  logging.dir                       - Log directory (empty for stderr)
  storage.conversations_dir         - Conversation store directory`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/councild/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	out, err := yaml.Marshal(configDocument(cfg))
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

// configKeys maps settable keys to their value kind.
var configKeys = map[string]string{
	"server.listen":                    "string",
	"server.rate_limit_window_seconds": "int",
	"server.rate_limit_max_requests":   "int",
	"council.default_chairman":         "string",
	"council.title_model":              "string",
	"council.max_council_size":         "int",
	"council.response_timeout_seconds": "int",
	"council.title_timeout_seconds":    "int",
	"council.base_url":                 "string",
	"limits.max_content_chars":         "int",
	"limits.max_context_message_chars": "int",
	"limits.max_context_total_chars":   "int",
	"logging.level":                    "string",
	"logging.dir":                      "string",
	"storage.conversations_dir":        "string",
}

// parseConfigValue converts a raw flag value to the key's declared kind.
func parseConfigValue(kind, value string) (any, error) {
	switch kind {
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", value)
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", value)
		}
		return b, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	kind, ok := configKeys[key]
	if !ok {
		valid := make([]string, 0, len(configKeys))
		for k := range configKeys {
			valid = append(valid, k)
		}
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(valid, ", "))
	}

	value, err := parseConfigValue(kind, args[1])
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	viper.Set(key, value)

	// Validate the resulting configuration before persisting it.
	if _, err := config.Load(); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := viper.WriteConfigAs(config.ConfigFile()); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, value)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out, err := yaml.Marshal(configDocument(config.Default()))
	if err != nil {
		return fmt.Errorf("rendering defaults: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}

// configDocument lays a Config out in the YAML shape the loader reads.
func configDocument(cfg *config.Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen":                    cfg.Server.Listen,
			"allowed_origins":           cfg.Server.AllowedOrigins,
			"rate_limit_window_seconds": cfg.Server.RateLimitWindowSeconds,
			"rate_limit_max_requests":   cfg.Server.RateLimitMaxRequests,
		},
		"council": map[string]any{
			"default_models":           cfg.Council.DefaultModels,
			"default_chairman":         cfg.Council.DefaultChairman,
			"title_model":              cfg.Council.TitleModel,
			"max_council_size":         cfg.Council.MaxCouncilSize,
			"response_timeout_seconds": cfg.Council.ResponseTimeoutSeconds,
			"title_timeout_seconds":    cfg.Council.TitleTimeoutSeconds,
			"allowed_model_patterns":   cfg.Council.AllowedModelPatterns,
			"base_url":                 cfg.Council.BaseURL,
		},
		"limits": map[string]any{
			"max_content_chars":         cfg.Limits.MaxContentChars,
			"max_context_message_chars": cfg.Limits.MaxContextMessageChars,
			"max_context_total_chars":   cfg.Limits.MaxContextTotalChars,
		},
		"logging": map[string]any{
			"level": cfg.Logging.Level,
			"dir":   cfg.Logging.Dir,
		},
		"storage": map[string]any{
			"conversations_dir": cfg.Storage.ConversationsDir,
		},
	}
}
