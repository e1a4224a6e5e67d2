package unittypes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmutisya/shuledesk/internal/models"
)

// FieldError reports a single metadata field failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects field-level validation failures.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "metadata validation failed"
	}

	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Validate checks a metadata payload against the unit type's schema and
// reports every field failure rather than stopping at the first.
func Validate(t models.UnitType, payload map[string]any) error {
	schema, ok := registry[t]
	if !ok {
		return FieldErrors{{Field: "type", Message: fmt.Sprintf("unknown unit type %q", t)}}
	}

	if payload == nil {
		payload = map[string]any{}
	}

	var failures FieldErrors

	if raw, present := payload["schema_version"]; present {
		version, ok := asInt(raw)
		if !ok {
			failures = append(failures, FieldError{Field: "schema_version", Message: "must be an integer"})
		} else if version != schema.SchemaVersion {
			failures = append(failures, FieldError{
				Field:   "schema_version",
				Message: fmt.Sprintf("expected version %d, got %d", schema.SchemaVersion, version),
			})
		}
	}

	if raw, present := payload["description"]; present {
		desc, ok := raw.(string)
		if !ok {
			failures = append(failures, FieldError{Field: "description", Message: "must be a string"})
		} else if len(desc) > schema.MaxDescLen {
			failures = append(failures, FieldError{
				Field:   "description",
				Message: fmt.Sprintf("must be at most %d characters", schema.MaxDescLen),
			})
		}
	}

	failures = append(failures, validateFeatures(payload)...)

	for _, rule := range schema.Fields {
		raw, present := payload[rule.Name]
		if !present {
			if rule.Required {
				failures = append(failures, FieldError{Field: rule.Name, Message: "is required"})
			}
			continue
		}

		switch rule.Kind {
		case FieldString:
			value, ok := raw.(string)
			if !ok {
				failures = append(failures, FieldError{Field: rule.Name, Message: "must be a string"})
				continue
			}
			if rule.MinLen > 0 && len(value) < rule.MinLen {
				failures = append(failures, FieldError{
					Field:   rule.Name,
					Message: fmt.Sprintf("must be at least %d characters", rule.MinLen),
				})
			}
			if rule.MaxLen > 0 && len(value) > rule.MaxLen {
				failures = append(failures, FieldError{
					Field:   rule.Name,
					Message: fmt.Sprintf("must be at most %d characters", rule.MaxLen),
				})
			}
		case FieldInt:
			value, ok := asInt(raw)
			if !ok {
				failures = append(failures, FieldError{Field: rule.Name, Message: "must be an integer"})
				continue
			}
			if value < rule.Min {
				failures = append(failures, FieldError{
					Field:   rule.Name,
					Message: fmt.Sprintf("must be at least %d", rule.Min),
				})
			}
		}
	}

	if len(failures) > 0 {
		return failures
	}
	return nil
}

// EffectiveFeatures resolves the full feature table for a unit's stored
// metadata: per-type defaults merged with the payload's sparse "features"
// override map.
func EffectiveFeatures(t models.UnitType, payload map[string]any) (map[Feature]bool, bool) {
	defaults, ok := Defaults(t)
	if !ok {
		return nil, false
	}

	overrides := featureOverrides(payload)
	return Merge(defaults, overrides), true
}

// validateFeatures checks the optional sparse feature override map.
func validateFeatures(payload map[string]any) FieldErrors {
	raw, present := payload["features"]
	if !present {
		return nil
	}

	overrides, ok := raw.(map[string]any)
	if !ok {
		return FieldErrors{{Field: "features", Message: "must be an object of feature flags"}}
	}

	var failures FieldErrors
	for name, value := range overrides {
		if !Known(Feature(name)) {
			failures = append(failures, FieldError{
				Field:   "features." + name,
				Message: "unknown feature",
			})
			continue
		}
		if _, ok := value.(bool); !ok {
			failures = append(failures, FieldError{
				Field:   "features." + name,
				Message: "must be a boolean",
			})
		}
	}
	return failures
}

func featureOverrides(payload map[string]any) map[Feature]bool {
	if payload == nil {
		return nil
	}
	raw, present := payload["features"]
	if !present {
		return nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	overrides := make(map[Feature]bool, len(values))
	for name, value := range values {
		feature := Feature(name)
		if !Known(feature) {
			continue
		}
		if enabled, ok := value.(bool); ok {
			overrides[feature] = enabled
		}
	}
	return overrides
}

// asInt accepts the integer encodings produced by JSON decoding and typed callers.
func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}
