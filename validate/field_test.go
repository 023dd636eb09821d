package validate

import (
	"testing"

	"github.com/lirancohen/vitals/schema"
)

func float(v float64) *float64 { return &v }

func formField(def schema.FieldDefinition) schema.VisibleField {
	return schema.VisibleField{FieldDefinition: def, PageID: "page", PageKind: schema.PageForm}
}

func TestField_Required(t *testing.T) {
	required := formField(schema.FieldDefinition{ID: "name", Type: schema.FieldText, Required: true})
	optional := formField(schema.FieldDefinition{ID: "nickname", Type: schema.FieldText})

	tests := []struct {
		name    string
		field   schema.VisibleField
		visible []schema.VisibleField
		values  map[string]any
		wantMsg string
	}{
		{
			name:    "required present",
			field:   required,
			visible: []schema.VisibleField{required},
			values:  map[string]any{"name": "Ada"},
		},
		{
			name:    "required absent",
			field:   required,
			visible: []schema.VisibleField{required},
			values:  map[string]any{},
			wantMsg: "required field missing",
		},
		{
			name:    "required nil counts as absent",
			field:   required,
			visible: []schema.VisibleField{required},
			values:  map[string]any{"name": nil},
			wantMsg: "required field missing",
		},
		{
			name:    "required empty string counts as absent",
			field:   required,
			visible: []schema.VisibleField{required},
			values:  map[string]any{"name": ""},
			wantMsg: "required field missing",
		},
		{
			name:    "optional absent",
			field:   optional,
			visible: []schema.VisibleField{optional},
			values:  map[string]any{},
		},
		{
			name:  "non-required twin of a required definition still reports",
			field: formField(schema.FieldDefinition{ID: "name", Type: schema.FieldText}),
			visible: []schema.VisibleField{
				formField(schema.FieldDefinition{ID: "name", Type: schema.FieldText}),
				required,
			},
			values:  map[string]any{},
			wantMsg: "required field missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Field(tt.field, tt.visible, tt.values)
			if tt.wantMsg == "" {
				if got != nil {
					t.Errorf("Field() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Field() = nil, want error %q", tt.wantMsg)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Field() message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestField_Formats(t *testing.T) {
	tests := []struct {
		name    string
		def     schema.FieldDefinition
		value   any
		wantMsg string
	}{
		{
			name:  "text ok",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldText},
			value: "hello",
		},
		{
			name:    "text wrong type",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldText},
			value:   42,
			wantMsg: "must be text",
		},
		{
			name:  "text pattern match",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldText, Pattern: `[A-Z]\d{3}`},
			value: "B123",
		},
		{
			name:    "text pattern mismatch",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldText, Pattern: `[A-Z]\d{3}`},
			value:   "b123",
			wantMsg: "does not match the expected format",
		},
		{
			name:    "text pattern is anchored",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldText, Pattern: `\d{3}`},
			value:   "x123y",
			wantMsg: "does not match the expected format",
		},
		{
			name:  "number ok",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldNumber},
			value: 3.5,
		},
		{
			name:  "number int accepted",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldNumber},
			value: 4,
		},
		{
			name:    "number wrong type",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldNumber},
			value:   "4",
			wantMsg: "must be a number",
		},
		{
			name:    "number below min",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldNumber, Min: float(0)},
			value:   -1.0,
			wantMsg: "must be at least 0",
		},
		{
			name:    "number above max",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldNumber, Max: float(10)},
			value:   11.0,
			wantMsg: "must be at most 10",
		},
		{
			name:  "date ok",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldDate},
			value: "2024-02-29",
		},
		{
			name:    "date malformed",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldDate},
			value:   "29/02/2024",
			wantMsg: "must be a valid date (YYYY-MM-DD)",
		},
		{
			name:    "date impossible",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldDate},
			value:   "2023-02-29",
			wantMsg: "must be a valid date (YYYY-MM-DD)",
		},
		{
			name:  "select ok",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldSelect, Options: []string{"URBAN", "RURAL"}},
			value: "URBAN",
		},
		{
			name:    "select unknown option",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldSelect, Options: []string{"URBAN", "RURAL"}},
			value:   "SUBURBAN",
			wantMsg: "must be one of the listed options",
		},
		{
			name:  "checkbox ok",
			def:   schema.FieldDefinition{ID: "f", Type: schema.FieldCheckbox},
			value: true,
		},
		{
			name:    "checkbox wrong type",
			def:     schema.FieldDefinition{ID: "f", Type: schema.FieldCheckbox},
			value:   "yes",
			wantMsg: "must be a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := formField(tt.def)
			got := Field(f, []schema.VisibleField{f}, map[string]any{"f": tt.value})
			if tt.wantMsg == "" {
				if got != nil {
					t.Errorf("Field() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Field() = nil, want error %q", tt.wantMsg)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Field() message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.Value != tt.value {
				t.Errorf("Field() value = %v, want %v", got.Value, tt.value)
			}
		})
	}
}

func TestField_Verification(t *testing.T) {
	f := schema.VisibleField{
		FieldDefinition: schema.FieldDefinition{ID: "identityVerified", Type: schema.FieldCheckbox},
		PageID:          "verify",
		PageKind:        schema.PageVerification,
	}
	visible := []schema.VisibleField{f}

	tests := []struct {
		name    string
		values  map[string]any
		wantMsg string
	}{
		{
			name:   "true accepted",
			values: map[string]any{"identityVerified": true},
		},
		{
			name:   "false accepted",
			values: map[string]any{"identityVerified": false},
		},
		{
			name:    "missing result",
			values:  map[string]any{},
			wantMsg: "verification result missing",
		},
		{
			name:    "non-boolean result",
			values:  map[string]any{"identityVerified": "yes"},
			wantMsg: "verification result must be a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Field(f, visible, tt.values)
			if tt.wantMsg == "" {
				if got != nil {
					t.Errorf("Field() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Field() = nil, want error %q", tt.wantMsg)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Field() message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}
