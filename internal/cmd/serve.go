package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llmcouncil/councild/internal/config"
	"github.com/llmcouncil/councild/internal/conversation"
	"github.com/llmcouncil/councild/internal/council"
	"github.com/llmcouncil/councild/internal/event"
	"github.com/llmcouncil/councild/internal/logging"
	"github.com/llmcouncil/councild/internal/openrouter"
	"github.com/llmcouncil/councild/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the council HTTP server",
	Long: `Run the council HTTP server.

The server exposes the SSE council endpoint, the model listing
passthrough, conversation storage, and a health probe. It holds no API
credentials; every request carries the caller's key in the
X-OpenRouter-Api-Key header.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides server.listen)")
	_ = viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logger.Close()

	bus := event.NewBus()
	bus.Subscribe("council.run.finished", func(ev event.Event) {
		if fin, ok := ev.(event.RunFinishedEvent); ok {
			logger.Info("run finished",
				"request_id", fin.RequestID,
				"success", fin.Success,
				"duration", fin.Duration.String())
		}
	})

	orClient := openrouter.NewClient(openrouter.WithBaseURL(cfg.Council.BaseURL))
	pipeline, err := buildPipeline(cfg, orClient, logger, bus)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	var store conversation.Store
	if dir := cfg.Storage.ConversationsDir; dir != "" {
		fs, err := conversation.NewFileStore(dir, logger)
		if err != nil {
			return fmt.Errorf("opening conversation store: %w", err)
		}
		store = fs
	}

	srv := server.New(cfg, pipeline, orClient, store, logger)

	// Config edits swap in a rebuilt pipeline. Server-level settings
	// (listen address, rate limits) still need a restart.
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newCfg, err := config.Load()
		if err != nil {
			logger.Warn("config reload failed, keeping current pipeline", "file", e.Name, "error", err)
			return
		}
		newPipeline, err := buildPipeline(newCfg, orClient, logger, bus)
		if err != nil {
			logger.Warn("config reload failed, keeping current pipeline", "file", e.Name, "error", err)
			return
		}
		srv.SetPipeline(newPipeline)
		logger.Info("config reloaded", "file", e.Name)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func buildPipeline(cfg *config.Config, client *openrouter.Client, logger *logging.Logger, bus *event.Bus) (*council.Pipeline, error) {
	matcher, err := cfg.Council.ModelMatcher()
	if err != nil {
		return nil, fmt.Errorf("compiling model patterns: %w", err)
	}
	return council.New(council.Config{
		Client:                 client,
		DefaultCouncil:         cfg.Council.DefaultModels,
		DefaultChairman:        cfg.Council.DefaultChairman,
		TitleModel:             cfg.Council.TitleModel,
		ResponseTimeout:        cfg.Council.ResponseTimeout(),
		TitleTimeout:           cfg.Council.TitleTimeout(),
		MaxCouncilSize:         cfg.Council.MaxCouncilSize,
		MaxContentChars:        cfg.Limits.MaxContentChars,
		MaxContextMessageChars: cfg.Limits.MaxContextMessageChars,
		MaxContextTotalChars:   cfg.Limits.MaxContextTotalChars,
		Policy:                 matcher,
		Logger:                 logger,
		Bus:                    bus,
	})
}
