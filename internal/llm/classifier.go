package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/shepard/internal/cache"
	"github.com/ppiankov/shepard/internal/model"
	"go.uber.org/zap"
)

// Cache stores validated oracle responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Limiter throttles oracle calls per key
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// ClassifierOptions configures a Classifier
type ClassifierOptions struct {
	Model        string
	MaxTokens    int
	Temperature  float32
	CallTimeout  time.Duration // Per attempt; 0 means no extra deadline
	MaxRetries   int           // Retries after a transport failure (0 or 1)
	RetryBackoff time.Duration
	Cache        Cache // Optional
	CacheTTL     time.Duration
	Limiter      Limiter // Optional
	Logger       *zap.Logger
}

// Usage tracks oracle consumption for one classification
type Usage struct {
	TokensUsed int
	CacheHits  int
}

// Add accumulates another usage record
func (u *Usage) Add(other Usage) {
	u.TokensUsed += other.TokensUsed
	u.CacheHits += other.CacheHits
}

// Outcome is the typed result of classifying one context window:
// either a judgment or a tagged failure reason.
type Outcome struct {
	Window   model.ContextWindow
	Judgment *model.TreatmentJudgment
	Failure  model.FailureReason
	Err      error
	Usage    Usage
}

// OK reports whether the window produced a judgment
func (o Outcome) OK() bool {
	return o.Failure == model.FailureNone && o.Judgment != nil
}

// Classifier adapts a Provider into treatment judgments
type Classifier struct {
	provider Provider
	opts     ClassifierOptions
	logger   *zap.Logger
}

// NewClassifier creates a classifier around an explicitly constructed provider
func NewClassifier(provider Provider, opts ClassifierOptions) (*Classifier, error) {
	if provider == nil {
		return nil, fmt.Errorf("classifier requires a provider")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		provider: provider,
		opts:     opts,
		logger:   logger.Named("classifier").With(zap.String("provider", provider.Name())),
	}, nil
}

// ProviderName returns the underlying provider name
func (c *Classifier) ProviderName() string {
	return c.provider.Name()
}

// Model returns the configured model name
func (c *Classifier) Model() string {
	return c.opts.Model
}

// ClassifyDocument sends the whole opinion once under the strict document schema.
// Any failure is returned; the caller treats it as fatal.
func (c *Classifier) ClassifyDocument(ctx context.Context, opinion string) ([]model.TreatmentJudgment, Usage, error) {
	req := c.request(BuildDocumentPrompt(opinion), DocumentSchema)

	var judgments []model.TreatmentJudgment
	usage, err := c.call(ctx, req, func(text string) error {
		parsed, err := ParseDocument(text)
		if err != nil {
			return err
		}
		judgments = parsed
		return nil
	})
	if err != nil {
		return nil, usage, err
	}

	c.logger.Debug("document classified", zap.Int("treatments", len(judgments)), zap.Int("tokens", usage.TokensUsed))
	return judgments, usage, nil
}

// ClassifyWindow judges one context window. Failures are scoped to the window
// and reported in the Outcome rather than returned as an error.
func (c *Classifier) ClassifyWindow(ctx context.Context, window model.ContextWindow) Outcome {
	req := c.request(BuildCitationPrompt(window.Citation.Text, window.Text), CitationSchema)
	outcome := Outcome{Window: window}

	var judgment model.TreatmentJudgment
	usage, err := c.call(ctx, req, func(text string) error {
		parsed, err := ParseCitation(text, window)
		if err != nil {
			return err
		}
		judgment = parsed
		return nil
	})
	outcome.Usage = usage

	if err != nil {
		outcome.Failure = FailureReason(err)
		outcome.Err = err
		return outcome
	}

	outcome.Judgment = &judgment
	return outcome
}

// FailureReason maps an oracle error onto the failure taxonomy
func FailureReason(err error) model.FailureReason {
	switch {
	case err == nil:
		return model.FailureNone
	case errors.Is(err, model.ErrSchemaViolation):
		return model.FailureSchemaViolation
	default:
		return model.FailureTransportFailure
	}
}

func (c *Classifier) request(prompt string, schema *Schema) Request {
	return Request{
		System:      SystemPrompt,
		Prompt:      prompt,
		Schema:      schema,
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}
}

// call runs one request with cache lookup, a bounded retry on transport
// failures and truncation detection. parse must accept the response text.
func (c *Classifier) call(ctx context.Context, req Request, parse func(string) error) (Usage, error) {
	var usage Usage

	key := ""
	if c.opts.Cache != nil {
		key = cache.Key(c.provider.Name(), req.Model, req.Schema.Name, req.System, req.Prompt)
		if data, found := c.opts.Cache.Get(key); found {
			if err := parse(string(data)); err == nil {
				usage.CacheHits++
				return usage, nil
			}
			c.logger.Debug("ignoring invalid cached response", zap.String("key", key))
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying oracle call", zap.Int("attempt", attempt+1), zap.Error(lastErr))
			if err := sleepContext(ctx, c.opts.RetryBackoff); err != nil {
				return usage, fmt.Errorf("%w: %w", model.ErrTransportFailure, err)
			}
		}

		resp, err := c.complete(ctx, req)
		if err != nil {
			lastErr = err
			if errors.Is(err, model.ErrSchemaViolation) || ctx.Err() != nil {
				return usage, err
			}
			continue
		}
		usage.TokensUsed += resp.TokensUsed

		if err := parse(resp.Text); err != nil {
			if resp.Truncated {
				return usage, fmt.Errorf("%w: output truncated at token ceiling: %w", model.ErrSchemaViolation, err)
			}
			return usage, err
		}

		if key != "" {
			if err := c.opts.Cache.Set(key, []byte(resp.Text), c.opts.CacheTTL); err != nil {
				c.logger.Debug("cache write failed", zap.Error(err))
			}
		}
		return usage, nil
	}

	return usage, lastErr
}

// complete waits for the limiter and performs one attempt under the per-call timeout.
// Errors are always tagged as schema violations or transport failures.
func (c *Classifier) complete(ctx context.Context, req Request) (*Response, error) {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx, c.provider.Name()); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", model.ErrTransportFailure, err)
		}
	}

	callCtx := ctx
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, model.ErrSchemaViolation) || errors.Is(err, model.ErrTransportFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrTransportFailure, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response from %s", model.ErrSchemaViolation, c.provider.Name())
	}

	c.logger.Debug("oracle call complete",
		zap.String("schema", req.Schema.Name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("tokens", resp.TokensUsed),
		zap.Bool("truncated", resp.Truncated))

	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
