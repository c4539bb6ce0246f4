package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zgt/job-scout/internal/jobs"
)

// ErrInvalidResponse is returned when the model reply is not a valid evaluation.
var ErrInvalidResponse = errors.New("invalid evaluation response")

const evaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["verdict", "reason", "companyName", "rating", "skills"],
  "properties": {
    "verdict":     {"enum": ["true", "false", true, false]},
    "reason":      {"type": "string"},
    "companyName": {"type": "string"},
    "rating":      {"type": "integer", "minimum": 1, "maximum": 10},
    "skills":      {"type": "string"}
  }
}`

var evaluationValidator = jsonschema.MustCompileString("evaluation.schema.json", evaluationSchema)

// ParseEvaluation validates a model reply and normalizes the verdict to a bool.
func ParseEvaluation(raw string) (*jobs.Evaluation, error) {
	cleaned := extractJSON(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if err := evaluationValidator.Validate(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	fields := data.(map[string]any)
	rating, err := fields["rating"].(json.Number).Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: rating: %w", ErrInvalidResponse, err)
	}

	return &jobs.Evaluation{
		Fit:         verdict(fields["verdict"]),
		Reason:      strings.TrimSpace(fields["reason"].(string)),
		CompanyName: strings.TrimSpace(fields["companyName"].(string)),
		Rating:      int(math.Round(rating)),
		Skills:      strings.TrimSpace(fields["skills"].(string)),
		Raw:         raw,
	}, nil
}

func verdict(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
