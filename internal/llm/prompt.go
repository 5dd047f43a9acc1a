package llm

import "fmt"

// SystemPrompt is the role instruction sent with every classification request
const SystemPrompt = "You are the Chief Justice of the United States Supreme Court"

const negativeTreatmentDefinition = `A negative treatment occurs when one case overrules, distinguishes, declines to apply, limits, criticizes, or otherwise undermines the holding of another case.`

// BuildDocumentPrompt asks for every negative treatment in a whole opinion
func BuildDocumentPrompt(opinion string) string {
	return fmt.Sprintf(`Given the full text of a court opinion, identify any cases that are negatively treated within the text.

%s

From the text below, return a JSON object whose "citations" array holds one object per negative treatment with:
- treated_case (the name or citation of the case being treated),
- treatment_type (e.g. "Overruled", "Limited", "Distinguished", "Criticized"),
- excerpt (text from the opinion showing the treatment),
- explanation (your reasoning why this is negative treatment).

If no negative treatment is present, return an empty "citations" array.

---TEXT START---
%s
---TEXT END---`, negativeTreatmentDefinition, opinion)
}

// BuildCitationPrompt asks whether one cited case is treated negatively in an excerpt
func BuildCitationPrompt(citation, excerpt string) string {
	return fmt.Sprintf(`Below is an excerpt from a court opinion. Is the cited case %q treated negatively in this excerpt?

%s

Only judge the treatment of %q, not of other cases mentioned nearby. Return a JSON object with:
- treated_case (the name or citation of the case being treated),
- treatment_type (e.g. "Overruled", "Limited", "Distinguished", "Criticized"; an empty string when the treatment is not negative),
- excerpt (the sentence from the excerpt showing the treatment),
- explanation (your reasoning),
- is_negative (true only if the cited case is negatively treated).

---TEXT START---
%s
---TEXT END---`, citation, negativeTreatmentDefinition, citation, excerpt)
}
