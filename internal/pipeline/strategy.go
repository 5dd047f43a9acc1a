package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/shepard/internal/extract"
	"github.com/ppiankov/shepard/internal/llm"
	"github.com/ppiankov/shepard/internal/model"
	"github.com/ppiankov/shepard/internal/worker"
	"go.uber.org/zap"
)

// strategy produces judgments for one opinion in scan order
type strategy interface {
	state() model.State
	classify(ctx context.Context, text string, r *run) ([]model.TreatmentJudgment, error)
}

// documentStrategy sends the whole opinion in one request. Any failure is fatal.
type documentStrategy struct {
	classifier Classifier
}

func (s *documentStrategy) state() model.State {
	return model.StateWholeDocClassifying
}

func (s *documentStrategy) classify(ctx context.Context, text string, r *run) ([]model.TreatmentJudgment, error) {
	stats := &r.analysis.Stats
	stats.Citations = len(extract.Citations(text))

	judgments, usage, err := s.classifier.ClassifyDocument(ctx, text)
	stats.TokensUsed += usage.TokensUsed
	stats.CacheHits += usage.CacheHits
	if err != nil {
		return nil, fmt.Errorf("classify document %s: %w", r.analysis.Slug, err)
	}
	stats.Classified = 1

	return judgments, nil
}

// citationStrategy classifies one context window per citation occurrence on a
// bounded worker pool. A failed window is skipped, never fatal.
type citationStrategy struct {
	classifier Classifier
	radius     int
	workers    int
}

func (s *citationStrategy) state() model.State {
	return model.StatePerCitationScanning
}

// windowJob classifies one context window
type windowJob struct {
	index      int
	window     model.ContextWindow
	classifier Classifier
}

func (j *windowJob) Execute(ctx context.Context) worker.Result {
	return &windowResult{index: j.index, outcome: j.classifier.ClassifyWindow(ctx, j.window)}
}

type windowResult struct {
	index   int
	outcome llm.Outcome
}

func (r *windowResult) GetError() error {
	return r.outcome.Err
}

func (s *citationStrategy) classify(ctx context.Context, text string, r *run) ([]model.TreatmentJudgment, error) {
	stats := &r.analysis.Stats

	citations := extract.Citations(text)
	windows := extract.WindowsFor(text, citations, s.radius)
	stats.Citations = len(citations)
	stats.Occurrences = len(windows)

	if len(windows) == 0 {
		r.logger.Info("no citations found")
		return nil, nil
	}
	r.logger.Debug("classifying windows", zap.Int("citations", len(citations)), zap.Int("windows", len(windows)))

	pool := worker.NewPool(ctx, s.workers)
	pool.Start()
	for i, w := range windows {
		pool.Submit(&windowJob{index: i, window: w, classifier: s.classifier})
	}
	results := pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify citations %s: %w", r.analysis.Slug, err)
	}

	// Completion order is arbitrary; restore document order
	ordered := make([]*windowResult, 0, len(results))
	for _, res := range results {
		ordered = append(ordered, res.(*windowResult))
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].outcome.Window.Citation.Start, ordered[j].outcome.Window.Citation.Start
		if a != b {
			return a < b
		}
		return ordered[i].index < ordered[j].index
	})

	judgments := make([]model.TreatmentJudgment, 0, len(ordered))
	for _, res := range ordered {
		out := res.outcome
		stats.TokensUsed += out.Usage.TokensUsed
		stats.CacheHits += out.Usage.CacheHits

		if !out.OK() {
			skip := model.SkippedOccurrence{
				Citation: out.Window.Citation.Text,
				Offset:   out.Window.Citation.Start,
				Reason:   out.Failure,
			}
			if out.Err != nil {
				skip.Error = out.Err.Error()
			}
			stats.Skipped = append(stats.Skipped, skip)
			r.logger.Warn("skipping citation occurrence",
				zap.String("citation", skip.Citation),
				zap.Int("offset", skip.Offset),
				zap.String("reason", string(skip.Reason)),
				zap.Error(out.Err))
			continue
		}

		stats.Classified++
		judgments = append(judgments, *out.Judgment)
	}

	return judgments, nil
}
