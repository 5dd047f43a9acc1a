package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/shepard/internal/aggregate"
	"github.com/ppiankov/shepard/internal/cache"
	"github.com/ppiankov/shepard/internal/extract"
	"github.com/ppiankov/shepard/internal/llm"
	"github.com/ppiankov/shepard/internal/loader"
	"github.com/ppiankov/shepard/internal/model"
	"github.com/ppiankov/shepard/internal/worker"
	"go.uber.org/zap"
)

// Classifier is the oracle adapter driven by the pipeline
type Classifier interface {
	ClassifyDocument(ctx context.Context, opinion string) ([]model.TreatmentJudgment, llm.Usage, error)
	ClassifyWindow(ctx context.Context, window model.ContextWindow) llm.Outcome
}

// Options configures one Pipeline
type Options struct {
	Mode     model.Mode
	Radius   int // Context window radius in citation mode
	Workers  int // Concurrent window classifications
	Provider string
	Model    string
	Logger   *zap.Logger
}

// Pipeline orchestrates loading, classification and aggregation for one opinion at a time
type Pipeline struct {
	loader     loader.Loader
	classifier Classifier
	opts       Options
	logger     *zap.Logger
}

// New creates a pipeline from explicitly constructed collaborators
func New(l loader.Loader, c Classifier, opts Options) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = model.ModeWholeDocument
	}
	if opts.Radius <= 0 {
		opts.Radius = extract.DefaultRadius
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		loader:     l,
		classifier: c,
		opts:       opts,
		logger:     logger,
	}
}

// NewPipeline wires a pipeline from configuration: loader, provider, cache and rate limiter
func NewPipeline(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mode, _ := model.ParseMode(cfg.Mode)

	llmConfig := llm.ConfigFromModel(cfg)
	if llmConfig.Model == "" {
		llmConfig.Model = llm.DefaultModel(llmConfig.Provider)
	}
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	for name, rps := range cfg.RateLimiting.Providers {
		limiter.SetRate(name, rps, cfg.RateLimiting.BurstSize)
	}

	opts := llm.ClassifierOptions{
		Model:        llmConfig.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		CallTimeout:  time.Duration(cfg.LLM.Timeout) * time.Second,
		MaxRetries:   cfg.Retry.MaxRetries,
		RetryBackoff: cfg.Retry.Backoff,
		Limiter:      limiter,
		Logger:       logger,
	}
	if cfg.Cache.Enabled {
		opts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.TTL)
		opts.CacheTTL = cfg.Cache.TTL
	}

	classifier, err := llm.NewClassifier(provider, opts)
	if err != nil {
		return nil, err
	}

	return New(NewLoader(cfg.Source), classifier, Options{
		Mode:     mode,
		Radius:   cfg.Window.Radius,
		Workers:  cfg.Concurrency.Workers,
		Provider: classifier.ProviderName(),
		Model:    classifier.Model(),
		Logger:   logger,
	}), nil
}

// NewLoader picks the HTTP loader when a base URL is configured, otherwise the file loader
func NewLoader(src model.SourceConfig) loader.Loader {
	if src.BaseURL != "" {
		return loader.NewHTTPLoader(src.BaseURL, src.Timeout, src.UserAgent, src.MaxBodyBytes,
			src.RespectRobots, src.HTTPProxy, src.HTTPSProxy, src.NoProxy)
	}
	return loader.NewFileLoader(src.Dir)
}

// Mode returns the configured analysis mode
func (p *Pipeline) Mode() model.Mode {
	return p.opts.Mode
}

// run tracks the state machine of one analysis
type run struct {
	analysis *model.Analysis
	logger   *zap.Logger
}

func (r *run) transition(to model.State) {
	r.analysis.State = to
	r.analysis.Trace = append(r.analysis.Trace, to)
	r.logger.Debug("state transition", zap.String("state", string(to)))
}

func (r *run) fail(err error) (*model.Analysis, error) {
	r.transition(model.StateFailed)
	r.analysis.Duration = time.Since(r.analysis.StartedAt)
	r.logger.Error("analysis failed", zap.Error(err))
	return r.analysis, err
}

// Analyze runs the full pipeline for one opinion slug. On failure the returned
// analysis is in the Failed state and carries no findings.
func (p *Pipeline) Analyze(ctx context.Context, slug string) (*model.Analysis, error) {
	analysis := &model.Analysis{
		RunID:     uuid.NewString(),
		Slug:      slug,
		Mode:      p.opts.Mode,
		State:     model.StateIdle,
		Trace:     []model.State{model.StateIdle},
		StartedAt: time.Now().UTC(),
		Findings:  []model.NegativeTreatmentResult{},
		Provider:  p.opts.Provider,
		Model:     p.opts.Model,
	}
	r := &run{
		analysis: analysis,
		logger: p.logger.With(
			zap.String("run_id", analysis.RunID),
			zap.String("slug", slug),
			zap.String("mode", string(p.opts.Mode)),
		),
	}

	strategy, err := p.strategy()
	if err != nil {
		return r.fail(err)
	}

	text, err := p.loader.Load(ctx, slug)
	if err != nil {
		return r.fail(fmt.Errorf("load %s: %w", slug, err))
	}
	r.transition(model.StateLoaded)
	r.logger.Debug("opinion loaded", zap.Int("bytes", len(text)))

	r.transition(strategy.state())
	judgments, err := strategy.classify(ctx, text, r)
	if err != nil {
		return r.fail(err)
	}

	r.transition(model.StateAggregating)
	agg := aggregate.NewAggregator()
	agg.AddAll(judgments)
	analysis.Findings = agg.Findings()
	analysis.Stats.Invalid = agg.Invalid()
	r.logger.Debug("judgments aggregated",
		zap.Int("findings", len(analysis.Findings)),
		zap.Int("dropped", agg.Dropped()))
	if agg.Invalid() > 0 {
		r.logger.Warn("rejected invalid judgments", zap.Int("count", agg.Invalid()))
	}

	r.transition(model.StateDone)
	analysis.Duration = time.Since(analysis.StartedAt)

	r.logger.Info("analysis complete",
		zap.Int("findings", len(analysis.Findings)),
		zap.Int("citations", analysis.Stats.Citations),
		zap.Int("skipped", len(analysis.Stats.Skipped)),
		zap.Int("tokens", analysis.Stats.TokensUsed),
		zap.Duration("duration", analysis.Duration))

	return analysis, nil
}

func (p *Pipeline) strategy() (strategy, error) {
	switch p.opts.Mode {
	case model.ModeWholeDocument:
		return &documentStrategy{classifier: p.classifier}, nil
	case model.ModePerCitation:
		return &citationStrategy{classifier: p.classifier, radius: p.opts.Radius, workers: p.opts.Workers}, nil
	default:
		return nil, fmt.Errorf("unknown mode: %s", p.opts.Mode)
	}
}
