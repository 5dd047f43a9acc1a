package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/shepard/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.Config to llm.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		HTTPProxy:   cfg.Source.HTTPProxy,
		HTTPSProxy:  cfg.Source.HTTPSProxy,
		NoProxy:     cfg.Source.NoProxy,
	}
}

// DefaultModel returns the model used when none is configured for a provider
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic", "claude":
		return defaultAnthropicModel
	case "ollama":
		return "llama3.1"
	default:
		return "gpt-4o"
	}
}
