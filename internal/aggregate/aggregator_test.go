package aggregate

import (
	"testing"

	"github.com/ppiankov/shepard/internal/model"
)

func negative(treatedCase, treatmentType, excerpt, explanation string) model.TreatmentJudgment {
	return model.TreatmentJudgment{
		TreatedCase:   treatedCase,
		TreatmentType: &treatmentType,
		Excerpt:       excerpt,
		Explanation:   explanation,
		IsNegative:    true,
	}
}

func notNegative(treatedCase string) model.TreatmentJudgment {
	return model.TreatmentJudgment{
		TreatedCase: treatedCase,
		Explanation: model.NoNegativeTreatment,
	}
}

func TestAggregate_FiltersNonNegative(t *testing.T) {
	findings, invalid := Aggregate([]model.TreatmentJudgment{
		notNegative("410 U.S. 113"),
		negative("410 U.S. 113", "Overruled", "We overrule 410 U.S. 113 here.", "Expressly overruled."),
	})

	if invalid != 0 {
		t.Errorf("expected no invalid judgments, got %d", invalid)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.TreatedCase != "410 U.S. 113" || f.TreatmentType != "Overruled" {
		t.Errorf("unexpected finding: %+v", f)
	}
}

func TestAggregate_ExactDuplicatesCollapse(t *testing.T) {
	a := negative("Roe", "Overruled", "Roe is overruled.", "Overruled.")
	b := negative("Roe", "Overruled", "Roe is overruled.", "Overruled.")
	b.Origin = model.Origin{Kind: model.OriginWindow, Index: 7}

	findings, _ := Aggregate([]model.TreatmentJudgment{a, b})
	if len(findings) != 1 {
		t.Errorf("expected exact duplicates to collapse, got %d findings", len(findings))
	}
}

func TestAggregate_ParaphrasesKept(t *testing.T) {
	findings, _ := Aggregate([]model.TreatmentJudgment{
		negative("Roe", "Overruled", "Roe is overruled.", "Overruled."),
		negative("Roe", "Overruled", "Roe is overruled.", "The Court overruled it."),
	})
	if len(findings) != 2 {
		t.Errorf("expected paraphrased explanations to stay distinct, got %d findings", len(findings))
	}
}

func TestAggregate_OrderPreserved(t *testing.T) {
	findings, _ := Aggregate([]model.TreatmentJudgment{
		negative("B", "Limited", "b", "b"),
		negative("A", "Overruled", "a", "a"),
		negative("B", "Limited", "b", "b"),
		negative("C", "Criticized", "c", "c"),
	})

	want := []string{"B", "A", "C"}
	if len(findings) != len(want) {
		t.Fatalf("expected %d findings, got %d", len(want), len(findings))
	}
	for i, f := range findings {
		if f.TreatedCase != want[i] {
			t.Errorf("finding %d: expected %s, got %s", i, want[i], f.TreatedCase)
		}
	}
}

func TestAggregate_RejectsEmptyTreatedCase(t *testing.T) {
	findings, invalid := Aggregate([]model.TreatmentJudgment{
		negative("  ", "Overruled", "x", "y"),
		negative("Roe", "Overruled", "x", "y"),
	})
	if invalid != 1 {
		t.Errorf("expected 1 invalid judgment, got %d", invalid)
	}
	if len(findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(findings))
	}
}

func TestAggregate_EmptyIsNotNil(t *testing.T) {
	findings, _ := Aggregate(nil)
	if findings == nil {
		t.Error("expected empty, non-nil findings")
	}
}

func TestAggregator_Counters(t *testing.T) {
	a := NewAggregator()
	if !a.Add(negative("Roe", "Overruled", "x", "y")) {
		t.Error("expected first judgment to be added")
	}
	if a.Add(negative("Roe", "Overruled", "x", "y")) {
		t.Error("expected duplicate to be ignored")
	}
	a.Add(notNegative("Roe"))

	if a.Dropped() != 1 {
		t.Errorf("expected 1 dropped judgment, got %d", a.Dropped())
	}
	if len(a.Findings()) != 1 {
		t.Errorf("expected 1 finding, got %d", len(a.Findings()))
	}
}
