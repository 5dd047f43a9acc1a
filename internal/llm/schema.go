package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/shepard/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	DocumentSchemaName = "negative_treatments"
	CitationSchemaName = "citation_treatment"
)

func treatmentProperties() map[string]jsonschema.Definition {
	return map[string]jsonschema.Definition{
		"treated_case":   {Type: jsonschema.String, Description: "Name or citation of the case being treated"},
		"treatment_type": {Type: jsonschema.String, Description: "Kind of treatment, e.g. Overruled, Limited"},
		"excerpt":        {Type: jsonschema.String, Description: "Opinion text showing the treatment"},
		"explanation":    {Type: jsonschema.String, Description: "Why this is negative treatment"},
	}
}

var treatmentFields = []string{"treated_case", "treatment_type", "excerpt", "explanation"}

// DocumentSchema is the strict schema for whole-document classification:
// one "citations" array of four-field treatment objects.
var DocumentSchema = &Schema{
	Name: DocumentSchemaName,
	Definition: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"citations": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type:                 jsonschema.Object,
					Properties:           treatmentProperties(),
					Required:             treatmentFields,
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"citations"},
		AdditionalProperties: false,
	},
}

// CitationSchema is the strict schema for one context window judgment
var CitationSchema = &Schema{
	Name: CitationSchemaName,
	Definition: func() *jsonschema.Definition {
		props := treatmentProperties()
		props["is_negative"] = jsonschema.Definition{Type: jsonschema.Boolean, Description: "Whether the cited case is treated negatively"}
		return &jsonschema.Definition{
			Type:                 jsonschema.Object,
			Properties:           props,
			Required:             append(append([]string{}, treatmentFields...), "is_negative"),
			AdditionalProperties: false,
		}
	}(),
}

type treatmentPayload struct {
	TreatedCase   string `json:"treated_case"`
	TreatmentType string `json:"treatment_type"`
	Excerpt       string `json:"excerpt"`
	Explanation   string `json:"explanation"`
}

type documentPayload struct {
	Citations []treatmentPayload `json:"citations"`
}

type citationPayload struct {
	TreatedCase   string `json:"treated_case"`
	TreatmentType string `json:"treatment_type"`
	Excerpt       string `json:"excerpt"`
	Explanation   string `json:"explanation"`
	IsNegative    bool   `json:"is_negative"`
}

// ParseDocument validates a whole-document payload. Every returned judgment is negative.
func ParseDocument(text string) ([]model.TreatmentJudgment, error) {
	var payload documentPayload
	if err := decodeStrict(DocumentSchema, text, &payload); err != nil {
		return nil, err
	}

	judgments := make([]model.TreatmentJudgment, 0, len(payload.Citations))
	for i, item := range payload.Citations {
		treatmentType := strings.TrimSpace(item.TreatmentType)
		judgments = append(judgments, model.TreatmentJudgment{
			TreatedCase:   strings.TrimSpace(item.TreatedCase),
			TreatmentType: &treatmentType,
			Excerpt:       strings.TrimSpace(item.Excerpt),
			Explanation:   strings.TrimSpace(item.Explanation),
			IsNegative:    true,
			Origin:        model.Origin{Kind: model.OriginDocument, Index: i},
		})
	}
	return judgments, nil
}

// ParseCitation validates a per-citation payload for the given window
func ParseCitation(text string, window model.ContextWindow) (model.TreatmentJudgment, error) {
	var payload citationPayload
	if err := decodeStrict(CitationSchema, text, &payload); err != nil {
		return model.TreatmentJudgment{}, err
	}

	w := window
	judgment := model.TreatmentJudgment{
		TreatedCase: strings.TrimSpace(payload.TreatedCase),
		Excerpt:     strings.TrimSpace(payload.Excerpt),
		IsNegative:  payload.IsNegative,
		Origin:      model.Origin{Kind: model.OriginWindow, Window: &w},
	}
	if judgment.TreatedCase == "" {
		judgment.TreatedCase = window.Citation.Text
	}

	if !payload.IsNegative {
		judgment.Explanation = model.NoNegativeTreatment
		return judgment, nil
	}

	treatmentType := strings.TrimSpace(payload.TreatmentType)
	if treatmentType == "" {
		return model.TreatmentJudgment{}, fmt.Errorf("%w: negative judgment without treatment_type", model.ErrSchemaViolation)
	}
	judgment.TreatmentType = &treatmentType
	judgment.Explanation = strings.TrimSpace(payload.Explanation)

	return judgment, nil
}

// decodeStrict checks required fields and types against the schema, then
// decodes again rejecting any field the schema does not declare.
func decodeStrict(schema *Schema, text string, v any) error {
	content := []byte(stripCodeFence(text))
	if len(content) == 0 {
		return fmt.Errorf("%w: %s: empty payload", model.ErrSchemaViolation, schema.Name)
	}

	if err := jsonschema.VerifySchemaAndUnmarshal(*schema.Definition, content, v); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrSchemaViolation, schema.Name, err)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrSchemaViolation, schema.Name, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: %s: trailing data after JSON object", model.ErrSchemaViolation, schema.Name)
	}

	return nil
}

// stripCodeFence removes a surrounding ```json fence some models add despite instructions
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.HasPrefix(text, "{") {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
