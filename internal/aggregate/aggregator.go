package aggregate

import (
	"strings"

	"github.com/ppiankov/shepard/internal/model"
)

// Aggregator turns treatment judgments into the ordered findings list.
// Judgments must be added in scan order; the first of any exact duplicate wins.
type Aggregator struct {
	seen     map[model.NegativeTreatmentResult]bool
	findings []model.NegativeTreatmentResult
	invalid  int
	dropped  int
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		seen:     make(map[model.NegativeTreatmentResult]bool),
		findings: []model.NegativeTreatmentResult{},
	}
}

// Add consumes one judgment and reports whether it became a new finding
func (a *Aggregator) Add(j model.TreatmentJudgment) bool {
	if !j.IsNegative {
		a.dropped++
		return false
	}

	if strings.TrimSpace(j.TreatedCase) == "" {
		a.invalid++
		return false
	}

	result := j.Result()
	if a.seen[result] {
		return false
	}

	a.seen[result] = true
	a.findings = append(a.findings, result)
	return true
}

// AddAll consumes judgments in order
func (a *Aggregator) AddAll(judgments []model.TreatmentJudgment) {
	for _, j := range judgments {
		a.Add(j)
	}
}

// Findings returns the findings in the order they were first seen. Never nil.
func (a *Aggregator) Findings() []model.NegativeTreatmentResult {
	out := make([]model.NegativeTreatmentResult, len(a.findings))
	copy(out, a.findings)
	return out
}

// Invalid returns how many negative judgments were rejected for an empty treated case
func (a *Aggregator) Invalid() int {
	return a.invalid
}

// Dropped returns how many non-negative judgments were filtered out
func (a *Aggregator) Dropped() int {
	return a.dropped
}

// Aggregate is a convenience wrapper for a complete, ordered judgment list
func Aggregate(judgments []model.TreatmentJudgment) ([]model.NegativeTreatmentResult, int) {
	a := NewAggregator()
	a.AddAll(judgments)
	return a.Findings(), a.Invalid()
}
