package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/shepard/internal/model"
)

const ruleWidth = 80

// Renderer writes analysis results to files and a human-readable summary to out
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to out
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// OutputPath returns <dir>/<slug>_negative_treatments.json
func OutputPath(dir, slug string) string {
	return filepath.Join(dir, slug+"_negative_treatments.json")
}

// MarkdownPath returns <dir>/<slug>_negative_treatments.md
func MarkdownPath(dir, slug string) string {
	return filepath.Join(dir, slug+"_negative_treatments.md")
}

// RenderJSON writes the findings as a 2-space indented JSON array
func (r *Renderer) RenderJSON(findings []model.NegativeTreatmentResult, path string) error {
	if findings == nil {
		findings = []model.NegativeTreatmentResult{}
	}

	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	data = append(data, '\n')

	return writeFile(path, data)
}

// RenderMarkdown writes a Markdown report for one analysis
func (r *Renderer) RenderMarkdown(a *model.Analysis, path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Negative treatments: %s\n\n", a.Slug)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", a.RunID)
	fmt.Fprintf(&b, "- **Mode:** %s\n", a.Mode)
	if a.Provider != "" {
		fmt.Fprintf(&b, "- **Oracle:** %s / %s\n", a.Provider, a.Model)
	}
	fmt.Fprintf(&b, "- **Analyzed:** %s\n", a.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Citations:** %d", a.Stats.Citations)
	if a.Mode == model.ModePerCitation {
		fmt.Fprintf(&b, " (%d occurrences, %d skipped)", a.Stats.Occurrences, len(a.Stats.Skipped))
	}
	b.WriteString("\n\n")

	if len(a.Findings) == 0 {
		b.WriteString("No negative treatments found.\n")
	} else {
		fmt.Fprintf(&b, "## Findings (%d)\n\n", len(a.Findings))
		for i, f := range a.Findings {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, f.TreatedCase)
			fmt.Fprintf(&b, "**Treatment:** %s\n\n", f.TreatmentType)
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(f.Excerpt, "\n", "\n> "))
			fmt.Fprintf(&b, "%s\n\n", f.Explanation)
		}
	}

	if len(a.Stats.Skipped) > 0 {
		b.WriteString("## Skipped occurrences\n\n")
		b.WriteString("| Citation | Offset | Reason |\n|---|---|---|\n")
		for _, s := range a.Stats.Skipped {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", s.Citation, s.Offset, s.Reason)
		}
		b.WriteString("\n")
	}

	return writeFile(path, []byte(b.String()))
}

// RenderSummary prints the findings for a terminal
func (r *Renderer) RenderSummary(a *model.Analysis) {
	if len(a.Findings) == 0 {
		fmt.Fprintf(r.out, "No negative treatments found for '%s'.\n", a.Slug)
		return
	}

	rule := strings.Repeat("-", ruleWidth)
	fmt.Fprintf(r.out, "%d Negative treatment(s) found:\n", len(a.Findings))
	fmt.Fprintln(r.out, rule)
	for _, f := range a.Findings {
		fmt.Fprintf(r.out, "Treated Case   : %s\n", f.TreatedCase)
		fmt.Fprintf(r.out, "Treatment Type : %s\n", f.TreatmentType)
		fmt.Fprintf(r.out, "Excerpt        : %s\n", f.Excerpt)
		fmt.Fprintf(r.out, "Explanation    : %s\n", f.Explanation)
		fmt.Fprintln(r.out, rule)
	}
}

// RenderStats prints run statistics
func (r *Renderer) RenderStats(a *model.Analysis) {
	s := a.Stats
	fmt.Fprintf(r.out, "Run %s (%s, %s)\n", a.RunID, a.Mode, a.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "  citations: %d  occurrences: %d  classified: %d  invalid: %d\n",
		s.Citations, s.Occurrences, s.Classified, s.Invalid)
	fmt.Fprintf(r.out, "  tokens: %d  cache hits: %d  skipped: %d\n", s.TokensUsed, s.CacheHits, len(s.Skipped))
	for _, sk := range s.Skipped {
		fmt.Fprintf(r.out, "    skipped %q at %d: %s\n", sk.Citation, sk.Offset, sk.Reason)
	}
}

// RenderResult writes the JSON file, the optional Markdown report and the summary.
// Only call it for successful analyses.
func (r *Renderer) RenderResult(a *model.Analysis, dir string, markdown, verbose bool) error {
	jsonPath := OutputPath(dir, a.Slug)
	if err := r.RenderJSON(a.Findings, jsonPath); err != nil {
		return fmt.Errorf("render JSON: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
	}

	if markdown {
		mdPath := MarkdownPath(dir, a.Slug)
		if err := r.RenderMarkdown(a, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(a)
	if verbose {
		r.RenderStats(a)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
