// Package schema provides the declaration-schema types and the visibility
// resolver for Vitals' dynamically configured declaration forms.
//
// A schema is configuration: it is loaded from the external configuration
// service per request and treated as an immutable value for the duration of
// that request. There is no ambient schema cache.
package schema

import (
	"github.com/lirancohen/vitals/action"
)

// FieldType classifies a field definition and selects its format checks.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// PageKind classifies a page in a declaration form.
type PageKind string

const (
	// PageForm is a regular declaration page; its fields merge into the
	// record's declaration data.
	PageForm PageKind = "form"

	// PageVerification is a confirmation page for a sub-flow; its fields
	// must carry a boolean value whenever the page is visible.
	PageVerification PageKind = "verification"

	// PageAnnotation is an action-scoped metadata page; its fields are
	// validated against the action's annotation alone and never merge
	// into the declaration.
	PageAnnotation PageKind = "annotation"
)

// FieldDefinition describes one field of a declaration or review form.
//
// Two definitions may share the same ID with mutually exclusive
// conditionals (alternate forms of the same logical field). Schemas are
// therefore held as ordered lists, never as maps keyed by ID.
type FieldDefinition struct {
	// ID is the field identifier. Not necessarily unique within a config.
	ID string `json:"id"`

	// Type selects the format checks applied to present values.
	Type FieldType `json:"type"`

	// Label is the human-readable field name used in error messages.
	Label string `json:"label,omitempty"`

	// Required marks the field as mandatory while visible.
	Required bool `json:"required,omitempty"`

	// Conditionals are boolean expressions over the candidate declaration.
	// All must hold for the field to be visible; a field with no
	// conditionals is always visible.
	Conditionals []string `json:"conditionals,omitempty"`

	// Options enumerates legal values for select fields.
	Options []string `json:"options,omitempty"`

	// Pattern is an anchored regular expression for text fields.
	Pattern string `json:"pattern,omitempty"`

	// Min and Max bound number fields when set.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Page is an ordered group of field definitions.
type Page struct {
	ID    string    `json:"id"`
	Title string    `json:"title,omitempty"`
	Kind  PageKind  `json:"kind"`

	// Conditionals gate the whole page; a hidden page hides every field
	// on it regardless of per-field conditionals.
	Conditionals []string `json:"conditionals,omitempty"`

	Fields []FieldDefinition `json:"fields"`
}

// EventConfig is the full declaration schema for one event type: the
// declaration pages plus the per-action review pages.
type EventConfig struct {
	EventType action.EventType `json:"event_type"`

	// Pages are the declaration pages, in form order.
	Pages []Page `json:"pages"`

	// Review maps an action type to the extra pages shown for that
	// action's review form (verification and annotation pages included).
	Review map[action.Type][]Page `json:"review,omitempty"`
}

// VisibleField is a field definition resolved against a candidate
// declaration, tagged with its containing page.
type VisibleField struct {
	FieldDefinition
	PageID   string
	PageKind PageKind
}

// Required reports whether the given field ID is required: true if at
// least one currently visible definition sharing that ID is required.
// Reducing over all visible definitions, rather than last-one-wins,
// keeps duplicate IDs with mutually exclusive conditionals correct.
func Required(fields []VisibleField, id string) bool {
	for _, f := range fields {
		if f.ID == id && f.FieldDefinition.Required {
			return true
		}
	}
	return false
}
