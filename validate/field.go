package validate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/lirancohen/vitals/schema"
)

// FieldError describes one failed field check.
type FieldError struct {
	// FieldID identifies the offending field.
	FieldID string `json:"field_id"`

	// Message is a plain-language description of the failure.
	Message string `json:"message"`

	// Value is the offending value, if one was supplied.
	Value any `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
}

// Field evaluates one visible field definition against the supplied
// values, producing zero or one error.
//
// Hidden fields never reach this function: the resolver only yields
// visible definitions, and a value submitted for a hidden field is inert,
// not forbidden. The required check reduces over all visible definitions
// sharing the ID, so a non-required twin of a required definition still
// reports the missing value.
func Field(f schema.VisibleField, visible []schema.VisibleField, values map[string]any) *FieldError {
	value, present := lookup(values, f.ID)

	// Verification pages confirm a sub-flow: the value must be present
	// and boolean whenever the page is visible. Absence here is distinct
	// from a plain missing required field.
	if f.PageKind == schema.PageVerification {
		if !present {
			return &FieldError{FieldID: f.ID, Message: "verification result missing"}
		}
		if _, ok := value.(bool); !ok {
			return &FieldError{FieldID: f.ID, Message: "verification result must be a boolean", Value: value}
		}
		return nil
	}

	if !present {
		if schema.Required(visible, f.ID) {
			return &FieldError{FieldID: f.ID, Message: "required field missing"}
		}
		return nil
	}

	return checkFormat(f.FieldDefinition, value)
}

// checkFormat applies the type-specific format checks declared on the
// field to a present value.
func checkFormat(f schema.FieldDefinition, value any) *FieldError {
	switch f.Type {
	case schema.FieldText:
		s, ok := value.(string)
		if !ok {
			return &FieldError{FieldID: f.ID, Message: "must be text", Value: value}
		}
		if f.Pattern != "" {
			re, err := regexp.Compile("^(?:" + f.Pattern + ")$")
			if err != nil {
				return &FieldError{FieldID: f.ID, Message: "field has an invalid pattern"}
			}
			if !re.MatchString(s) {
				return &FieldError{FieldID: f.ID, Message: "does not match the expected format", Value: value}
			}
		}

	case schema.FieldNumber:
		n, ok := toFloat(value)
		if !ok {
			return &FieldError{FieldID: f.ID, Message: "must be a number", Value: value}
		}
		if f.Min != nil && n < *f.Min {
			return &FieldError{FieldID: f.ID, Message: fmt.Sprintf("must be at least %v", *f.Min), Value: value}
		}
		if f.Max != nil && n > *f.Max {
			return &FieldError{FieldID: f.ID, Message: fmt.Sprintf("must be at most %v", *f.Max), Value: value}
		}

	case schema.FieldDate:
		s, ok := value.(string)
		if !ok {
			return &FieldError{FieldID: f.ID, Message: "must be a date", Value: value}
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return &FieldError{FieldID: f.ID, Message: "must be a valid date (YYYY-MM-DD)", Value: value}
		}

	case schema.FieldSelect:
		s, ok := value.(string)
		if !ok {
			return &FieldError{FieldID: f.ID, Message: "must be one of the listed options", Value: value}
		}
		found := false
		for _, opt := range f.Options {
			if s == opt {
				found = true
				break
			}
		}
		if !found {
			return &FieldError{FieldID: f.ID, Message: "must be one of the listed options", Value: value}
		}

	case schema.FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return &FieldError{FieldID: f.ID, Message: "must be a boolean", Value: value}
		}
	}

	return nil
}

// lookup returns the value for a field ID. A nil value or empty string
// counts as absent.
func lookup(values map[string]any, id string) (any, bool) {
	v, ok := values[id]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

// toFloat normalizes JSON-decoded numeric values.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
