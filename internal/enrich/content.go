// Package enrich sends normalized text to a language model and validates the
// structured content it returns.
package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"paperpipe/internal/domain"
)

// Failure reasons. They surface to the pipeline as domain.ErrEnrichment.
var (
	ErrTransport     = errors.New("llm request failed")
	ErrMalformedJSON = errors.New("llm response is not a JSON object")
	ErrMissingKey    = errors.New("llm response is missing required key")
	ErrInvalidShape  = errors.New("llm response has an invalid shape")
)

var requiredKeys = []string{"cleaned_text", "summary", "entities"}

const contentSchema = `{
  "type": "object",
  "required": ["cleaned_text", "summary", "entities"],
  "properties": {
    "cleaned_text": {"type": "string"},
    "summary": {"type": "string"},
    "entities": {"type": "array", "items": {"type": "string"}}
  }
}`

var schema = jsonschema.MustCompileString("enrichment.schema.json", contentSchema)

type payload struct {
	CleanedText string   `json:"cleaned_text"`
	Summary     string   `json:"summary"`
	Entities    []string `json:"entities"`
}

// ParseContent validates a model reply. Extra keys are ignored.
func ParseContent(raw string) (domain.EnrichedContent, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.EnrichedContent{}, fmt.Errorf("%w: got %T", ErrMalformedJSON, v)
	}
	for _, key := range requiredKeys {
		if _, ok := obj[key]; !ok {
			return domain.EnrichedContent{}, fmt.Errorf("%w %q", ErrMissingKey, key)
		}
	}
	if err := schema.Validate(obj); err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if p.Entities == nil {
		p.Entities = []string{}
	}
	return domain.EnrichedContent{
		CleanedText: p.CleanedText,
		Summary:     p.Summary,
		Entities:    p.Entities,
	}, nil
}
