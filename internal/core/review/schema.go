package review

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const analysisSchemaURL = "rxcheck://schemas/analysis.json"

// analysisSchemaJSON describes a reviewer answer. Safety flags and the summary
// are mandatory; text lists may be missing or null and are repaired later.
const analysisSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["status", "overallScore", "findings", "summary"],
  "properties": {
    "status": {"enum": ["approved", "warning", "rejected"]},
    "overallScore": {"type": "integer", "minimum": 0, "maximum": 100},
    "findings": {
      "type": "object",
      "required": ["allergies", "interactions", "dosage", "contraindications"],
      "properties": {
        "allergies": {"$ref": "#/$defs/safetyFinding"},
        "interactions": {"$ref": "#/$defs/safetyFinding"},
        "dosage": {"$ref": "#/$defs/dosageFinding"},
        "contraindications": {"$ref": "#/$defs/safetyFinding"}
      }
    },
    "summary": {"type": "string"},
    "recommendations": {"$ref": "#/$defs/textList"},
    "criticalAlerts": {"$ref": "#/$defs/textList"}
  },
  "$defs": {
    "textList": {"type": ["array", "null"], "items": {"type": "string"}},
    "safetyFinding": {
      "type": "object",
      "required": ["safe"],
      "properties": {
        "safe": {"type": "boolean"},
        "issues": {"$ref": "#/$defs/textList"},
        "suggestions": {"$ref": "#/$defs/textList"}
      }
    },
    "dosageFinding": {
      "type": "object",
      "required": ["appropriate"],
      "properties": {
        "appropriate": {"type": "boolean"},
        "issues": {"$ref": "#/$defs/textList"},
        "suggestions": {"$ref": "#/$defs/textList"}
      }
    }
  }
}`

var analysisSchema = jsonschema.MustCompileString(analysisSchemaURL, analysisSchemaJSON)

func validateAnalysisJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := analysisSchema.Validate(doc); err != nil {
		return fmt.Errorf("analysis schema: %w", err)
	}
	return nil
}
