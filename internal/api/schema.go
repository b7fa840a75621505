package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const viewshedRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["observer"],
  "properties": {
    "observer": {
      "type": "object",
      "required": ["lat", "lon"],
      "properties": {
        "lat": {"type": "number", "minimum": -90, "maximum": 90},
        "lon": {"type": "number", "minimum": -180, "maximum": 180}
      }
    },
    "observerHeightM": {"type": "number", "exclusiveMinimum": 0},
    "maxRadiusKm": {"type": "number", "exclusiveMinimum": 0},
    "resolutionM": {"type": "number", "exclusiveMinimum": 0},
    "algorithm": {"type": "string", "enum": ["radial", "baseline"]},
    "curvatureEnabled": {"type": "boolean"},
    "smoothingPasses": {"type": "integer", "minimum": 0, "maximum": 10}
  }
}`

// requestValidator checks request bodies against a compiled JSON Schema.
type requestValidator struct {
	schema *gojsonschema.Schema
}

func newRequestValidator() (*requestValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(viewshedRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &requestValidator{schema: schema}, nil
}

// ValidateBytes validates raw JSON bytes.
func (v *requestValidator) ValidateBytes(data []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
