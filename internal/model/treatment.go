package model

// NoNegativeTreatment is the explanation recorded for judgments that found no negative treatment
const NoNegativeTreatment = "No negative treatment identified."

// OriginKind identifies which classification input produced a judgment
type OriginKind string

const (
	OriginDocument OriginKind = "document" // Whole-document request
	OriginWindow   OriginKind = "window"   // Per-citation context window
)

// Origin ties a judgment back to the input it was classified from
type Origin struct {
	Kind   OriginKind
	Window *ContextWindow // Set for OriginWindow
	Index  int            // Position of the judgment within its input (document mode)
}

// Offset returns the source-document position used to order judgments
func (o Origin) Offset() int {
	if o.Window != nil {
		return o.Window.Citation.Start
	}
	return 0
}

// TreatmentJudgment is the classifier's verdict for one input unit
type TreatmentJudgment struct {
	TreatedCase   string
	TreatmentType *string // nil when IsNegative is false
	Excerpt       string
	Explanation   string
	IsNegative    bool
	Origin        Origin
}

// Result converts a judgment into the external output record
func (j TreatmentJudgment) Result() NegativeTreatmentResult {
	r := NegativeTreatmentResult{
		TreatedCase: j.TreatedCase,
		Excerpt:     j.Excerpt,
		Explanation: j.Explanation,
	}
	if j.TreatmentType != nil {
		r.TreatmentType = *j.TreatmentType
	}
	return r
}

// NegativeTreatmentResult is one finding in the final output.
// Field order is the serialized order.
type NegativeTreatmentResult struct {
	TreatedCase   string `json:"treated_case"`
	TreatmentType string `json:"treatment_type"`
	Excerpt       string `json:"excerpt"`
	Explanation   string `json:"explanation"`
}
