package llm

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Provider defines the interface for classification oracles
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one role-tagged request and returns the raw response text
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Schema is a named strict output schema
type Schema struct {
	Name       string
	Definition *jsonschema.Definition
}

// Request contains the input for one oracle call
type Request struct {
	// System is the role instruction
	System string

	// Prompt is the user payload (whole opinion or a context window)
	Prompt string

	// Schema requests structured output; nil means free text
	Schema *Schema

	// Model overrides the configured model when set
	Model string

	// MaxTokens caps the response length
	MaxTokens int

	// Temperature for sampling
	Temperature float32
}

// Response contains the oracle's output
type Response struct {
	// Text is the raw response text (JSON when a schema was requested)
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Truncated is set when output stopped at the token ceiling
	Truncated bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o",
		Timeout:     60,
		MaxTokens:   2048,
		Temperature: 0.2,
	}
}

// timeout returns the per-request timeout
func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// maxTokens picks the request cap, then the configured cap, then the default
func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2048
}

// model picks the request model, then the configured model, then fallback
func (c Config) model(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
