package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/shepard/internal/model"
)

// Analyzer runs the full analysis for one opinion slug
type Analyzer interface {
	Analyze(ctx context.Context, slug string) (*model.Analysis, error)
}

// AnalyzeJob represents one opinion analysis job
type AnalyzeJob struct {
	Index    int
	Slug     string
	Analyzer Analyzer
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	analysis, err := j.Analyzer.Analyze(ctx, j.Slug)
	return &AnalyzeResult{
		Index:    j.Index,
		Slug:     j.Slug,
		Analysis: analysis,
		Error:    err,
	}
}

// AnalyzeResult represents the result of an analysis job
type AnalyzeResult struct {
	Index    int
	Slug     string
	Analysis *model.Analysis
	Error    error
}

// GetError returns the error from the analysis
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple opinions concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessSlugs analyzes every slug and returns results in input order
func (b *BatchProcessor) ProcessSlugs(ctx context.Context, slugs []string) []*AnalyzeResult {
	if len(slugs) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, slug := range slugs {
		pool.Submit(&AnalyzeJob{
			Index:    i,
			Slug:     slug,
			Analyzer: b.analyzer,
		})
	}

	results := pool.Wait()

	ordered := make([]*AnalyzeResult, len(slugs))
	for _, result := range results {
		r := result.(*AnalyzeResult)
		ordered[r.Index] = r
	}

	// Slugs never queued because ctx ended
	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("not processed")
			}
			ordered[i] = &AnalyzeResult{Index: i, Slug: slugs[i], Error: err}
		}
	}

	return ordered
}

// ProcessFile reads slugs from a file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalyzeResult, error) {
	slugs, err := ReadSlugsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read slugs: %w", err)
	}

	return b.ProcessSlugs(ctx, slugs), nil
}

// ReadSlugsFromFile reads opinion slugs from a file (one per line)
func ReadSlugsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var slugs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			slugs = append(slugs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return slugs, nil
}
