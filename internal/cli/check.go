package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/shepard/internal/llm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// checkCmd verifies the configured oracle is reachable
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured LLM provider is available",
	Long: `Check builds the configured provider and probes it: OpenAI and Anthropic
are asked to list models, Ollama is checked for a running server.

Example:
  shepard check
  shepard check --provider ollama`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if err := requireAPIKey(cfg); err != nil {
			return err
		}

		llmConfig := llm.ConfigFromModel(cfg)
		if llmConfig.Model == "" {
			llmConfig.Model = llm.DefaultModel(llmConfig.Provider)
		}
		provider, err := llm.NewProvider(llmConfig)
		if err != nil {
			return fmt.Errorf("create LLM provider: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if !provider.IsAvailable(ctx) {
			return fmt.Errorf("provider %s is not available", provider.Name())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is available (model: %s)\n", provider.Name(), llmConfig.Model)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
