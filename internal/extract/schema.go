package extract

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const classificationSchemaJSON = `{
  "type": "object",
  "required": ["type", "subject", "knowledgePoints", "difficulty", "prerequisites"],
  "properties": {
    "type": {"enum": ["选择", "填空", "解答", "判断"]},
    "subject": {"type": "string", "minLength": 1},
    "knowledgePoints": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "difficulty": {"enum": ["简单", "中等", "困难"]},
    "prerequisites": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
  }
}`

const solutionSchemaJSON = `{
  "type": "object",
  "required": ["thinking", "steps", "answer", "summary"],
  "properties": {
    "thinking": {"type": "string"},
    "steps": {"type": ["array", "null"], "items": {"type": "string", "minLength": 1}},
    "answer": {"type": "string"},
    "summary": {"type": "string"}
  }
}`

var (
	classificationSchema = mustSchema(classificationSchemaJSON)
	solutionSchema       = mustSchema(solutionSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("extract: compile schema: %v", err))
	}
	return s
}

// ValidateClassification checks r against the classification schema.
func ValidateClassification(r ClassificationRecord) error {
	return validate(classificationSchema, r)
}

// ValidateSolution checks r against the solution schema.
func ValidateSolution(r SolutionRecord) error {
	return validate(solutionSchema, r)
}

func validate(schema *gojsonschema.Schema, v any) error {
	res, err := schema.Validate(gojsonschema.NewGoLoader(v))
	if err != nil {
		return fmt.Errorf("validate record: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), ErrValidationGap)
}
