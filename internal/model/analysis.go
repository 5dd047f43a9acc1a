package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the analysis strategy
type Mode string

const (
	ModeWholeDocument Mode = "document" // One request carrying the entire opinion
	ModePerCitation   Mode = "citation" // One request per citation context window
)

// ParseMode converts a user-supplied mode name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document", "whole-document", "doc", "":
		return ModeWholeDocument, nil
	case "citation", "per-citation", "cite":
		return ModePerCitation, nil
	default:
		return "", fmt.Errorf("unknown mode: %s (supported: document, citation)", s)
	}
}

// State is a pipeline run state
type State string

const (
	StateIdle                State = "idle"
	StateLoaded              State = "loaded"
	StateWholeDocClassifying State = "whole_doc_classifying"
	StatePerCitationScanning State = "per_citation_scanning"
	StateAggregating         State = "aggregating"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// FailureReason tags why a single classification produced no judgment
type FailureReason string

const (
	FailureNone             FailureReason = ""
	FailureSchemaViolation  FailureReason = "schema_violation"
	FailureTransportFailure FailureReason = "transport_failure"
)

// SkippedOccurrence records a per-citation classification that was dropped
type SkippedOccurrence struct {
	Citation string        `json:"citation"`
	Offset   int           `json:"offset"`
	Reason   FailureReason `json:"reason"`
	Error    string        `json:"error,omitempty"`
}

// Stats summarizes one pipeline run
type Stats struct {
	Citations   int                 `json:"citations"`   // Distinct citation strings
	Occurrences int                 `json:"occurrences"` // Context windows classified or attempted
	Classified  int                 `json:"classified"`  // Oracle calls that produced judgments
	Invalid     int                 `json:"invalid"`     // Judgments rejected by the aggregator
	TokensUsed  int                 `json:"tokens_used"`
	CacheHits   int                 `json:"cache_hits"`
	Skipped     []SkippedOccurrence `json:"skipped,omitempty"`
}

// Analysis is the complete result of analyzing one opinion
type Analysis struct {
	RunID      string                    `json:"run_id"`
	Slug       string                    `json:"slug"`
	Mode       Mode                      `json:"mode"`
	State      State                     `json:"state"`
	Trace      []State                   `json:"trace"`
	StartedAt  time.Time                 `json:"started_at"`
	Duration   time.Duration             `json:"duration"`
	Findings   []NegativeTreatmentResult `json:"findings"`
	Stats      Stats                     `json:"stats"`
	Provider   string                    `json:"provider,omitempty"`
	Model      string                    `json:"model,omitempty"`
}

// Empty reports whether the run found no negative treatments
func (a *Analysis) Empty() bool {
	return len(a.Findings) == 0
}
