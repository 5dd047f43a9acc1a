package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ppiankov/shepard/internal/model"
	"github.com/ppiankov/shepard/internal/util"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider implements the Provider interface for Anthropic Claude models
type AnthropicProvider struct {
	client anthropic.Client
	config Config
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.timeout()),
		// Retries are owned by the classifier
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		}))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.model(Request{}, defaultAnthropicModel)),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hi")),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Anthropic API check failed: %v\n", err)
		return false
	}
	return true
}

// Complete sends a Messages API request. The Messages API has no strict
// response format, so the schema is appended to the system prompt and the
// caller validates the payload.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.Schema != nil {
		instruction, err := schemaInstruction(req.Schema)
		if err != nil {
			return nil, err
		}
		system = strings.TrimSpace(system + "\n\n" + instruction)
	}

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.model(req, defaultAnthropicModel)),
		MaxTokens: int64(p.config.maxTokens(req)),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: Anthropic API error: %w", model.ErrTransportFailure, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: no text content in Anthropic response", model.ErrSchemaViolation)
	}

	return &Response{
		Text:       strings.TrimSpace(text.String()),
		Model:      string(message.Model),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
		Truncated:  message.StopReason == anthropic.StopReasonMaxTokens,
	}, nil
}

// schemaInstruction renders a schema as a plain-text output contract
func schemaInstruction(schema *Schema) (string, error) {
	raw, err := json.Marshal(schema.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal schema %s: %w", schema.Name, err)
	}
	return fmt.Sprintf("Respond with a single JSON object and nothing else. It must conform to this JSON schema (%s):\n%s", schema.Name, raw), nil
}
