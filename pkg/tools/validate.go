package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// validateInput checks input against a JSON Schema object. It covers the
// subset the catalog uses: required fields, primitive types, enums and
// numeric lower bounds. Unknown properties are ignored.
func validateInput(tool string, input map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}

	for _, field := range requiredFields(schema["required"]) {
		if v, ok := input[field]; !ok || v == nil {
			return &ValidationError{Tool: tool, Field: field, Reason: "required field missing"}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for key, value := range input {
		def, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(value, def); err != nil {
			return &ValidationError{Tool: tool, Field: key, Reason: err.Error()}
		}
	}
	return nil
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateValue(value any, def map[string]any) error {
	if expected, _ := def["type"].(string); expected != "" {
		if err := validateType(value, expected); err != nil {
			return err
		}
	}

	if enum := enumValues(def["enum"]); len(enum) > 0 {
		s, _ := value.(string)
		found := false
		for _, e := range enum {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %v is not one of %v", value, enum)
		}
	}

	if n, ok := toFloat(value); ok {
		if min, ok := toFloat(def["minimum"]); ok && n < min {
			return fmt.Errorf("must be >= %v", min)
		}
		if min, ok := toFloat(def["exclusiveMinimum"]); ok && n <= min {
			return fmt.Errorf("must be > %v", min)
		}
	}
	return nil
}

func enumValues(v any) []string {
	switch e := v.(type) {
	case []string:
		return e
	case []any:
		out := make([]string, 0, len(e))
		for _, x := range e {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := toFloat(value); ok {
			return nil
		}
	case "integer":
		if n, ok := toFloat(value); ok && n == math.Trunc(n) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
