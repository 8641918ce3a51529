package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmcouncil/councild/internal/config"
	"github.com/llmcouncil/councild/internal/openrouter"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available through the configured API",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is not set (export it or put it in .env)")
	}

	cfg := config.Get()
	orClient := openrouter.NewClient(openrouter.WithBaseURL(cfg.Council.BaseURL))

	models, err := orClient.ListModels(context.Background(), apiKey)
	if err != nil {
		return fmt.Errorf("fetching models: %w", err)
	}

	for _, m := range models {
		ctxLen := "-"
		if m.ContextLength != nil {
			ctxLen = fmt.Sprintf("%d", *m.ContextLength)
		}
		fmt.Printf("%-50s %-12s ctx %s\n", m.ID, m.Provider, ctxLen)
	}
	fmt.Printf("\n%d models\n", len(models))
	return nil
}
