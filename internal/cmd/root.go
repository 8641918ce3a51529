package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llmcouncil/councild/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "councild",
	Short: "LLM council orchestration server",
	Long: `Councild fans one question out to a council of language models,
has the members rank each other's anonymized answers, and asks a
chairman model to synthesize a final response. It serves the pipeline
over HTTP with server-sent events and ships a terminal client.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/councild/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// A .env in the working directory may carry OPENROUTER_API_KEY for the
	// client commands. Missing file is fine.
	_ = godotenv.Load()

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/councild")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("COUNCILD")
	// Replace dots with underscores for nested keys in env vars
	// e.g., COUNCILD_SERVER_LISTEN for server.listen
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
