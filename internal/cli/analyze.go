package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/shepard/internal/model"
	"github.com/ppiankov/shepard/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	timeout time.Duration
	noCache bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <slug>",
	Short: "Find negative treatments in one opinion",
	Long: `Analyze loads <slug>.html from the configured source, extracts its text
and asks the oracle which cited cases are treated negatively.

Modes:
  document   one request carrying the whole opinion (default)
  citation   one request per citation occurrence, run concurrently;
             a failed occurrence is skipped rather than failing the run

Findings are written to <output-dir>/<slug>_negative_treatments.json and
summarized on stdout. Nothing is written when the analysis fails.

Example:
  shepard analyze roe-v-wade
  shepard analyze roe-v-wade --mode citation --workers 8 --md
  shepard analyze roe-v-wade --provider anthropic
  shepard analyze roe-v-wade --provider ollama --model llama3.1`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the oracle response cache")
}

// buildPipeline resolves configuration and wires a pipeline with its logger
func buildPipeline() (*model.Config, *pipeline.Pipeline, *zap.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, nil, err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if err := requireAPIKey(cfg); err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, p, logger, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	slug := args[0]

	cfg, p, logger, err := buildPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", slug)
		fmt.Fprintf(os.Stderr, "Mode: %s\n", p.Mode())
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	analysis, err := p.Analyze(ctx, slug)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cmd.OutOrStdout())
	if err := renderer.RenderResult(analysis, cfg.Output.Dir, cfg.Output.Markdown, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}
