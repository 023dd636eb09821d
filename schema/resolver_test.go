package schema

import (
	"errors"
	"testing"

	"github.com/lirancohen/vitals/action"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestResolver_Visible(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name         string
		conditionals []string
		values       map[string]any
		want         bool
		wantErr      bool
	}{
		{
			name: "no conditionals always visible",
			want: true,
		},
		{
			name:         "single true conditional",
			conditionals: []string{`declaration.addressType == "URBAN"`},
			values:       map[string]any{"addressType": "URBAN"},
			want:         true,
		},
		{
			name:         "single false conditional",
			conditionals: []string{`declaration.addressType == "URBAN"`},
			values:       map[string]any{"addressType": "RURAL"},
			want:         false,
		},
		{
			name:         "conjunctive: all must hold",
			conditionals: []string{`has(declaration.district)`, `declaration.district != ""`},
			values:       map[string]any{"district": "north"},
			want:         true,
		},
		{
			name:         "conjunctive: one fails",
			conditionals: []string{`has(declaration.district)`, `declaration.district != ""`},
			values:       map[string]any{"district": ""},
			want:         false,
		},
		{
			name:         "absent key with has guard",
			conditionals: []string{`has(declaration.district) && declaration.district != ""`},
			values:       map[string]any{},
			want:         false,
		},
		{
			name:         "nil values treated as empty",
			conditionals: []string{`!has(declaration.district)`},
			values:       nil,
			want:         true,
		},
		{
			name:         "compile error reported",
			conditionals: []string{`declaration.district ==`},
			wantErr:      true,
		},
		{
			name:         "non-boolean result reported",
			conditionals: []string{`declaration.district`},
			values:       map[string]any{"district": "north"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Visible(tt.conditionals, tt.values)
			if tt.wantErr {
				var condErr *ConditionalError
				if !errors.As(err, &condErr) {
					t.Fatalf("Visible() error = %v, want *ConditionalError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Visible() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

// urbanRuralConfig models a form with one field ID declared twice under
// mutually exclusive conditionals: the urban variant requires a pattern,
// the rural variant is free text and not required.
func urbanRuralConfig() EventConfig {
	return EventConfig{
		EventType: action.EventBirth,
		Pages: []Page{
			{
				ID:   "address",
				Kind: PageForm,
				Fields: []FieldDefinition{
					{ID: "addressType", Type: FieldSelect, Options: []string{"URBAN", "RURAL"}},
					{
						ID:           "district",
						Type:         FieldText,
						Required:     true,
						Pattern:      `[A-Z]{2}-\d{3}`,
						Conditionals: []string{`has(declaration.addressType) && declaration.addressType == "URBAN"`},
					},
					{
						ID:           "district",
						Type:         FieldText,
						Conditionals: []string{`has(declaration.addressType) && declaration.addressType == "RURAL"`},
					},
				},
			},
		},
	}
}

func TestResolver_VisibleFields(t *testing.T) {
	r := newTestResolver(t)
	cfg := urbanRuralConfig()

	tests := []struct {
		name         string
		declaration  map[string]any
		wantIDs      []string
		wantRequired bool
	}{
		{
			name:         "urban variant selected",
			declaration:  map[string]any{"addressType": "URBAN"},
			wantIDs:      []string{"addressType", "district"},
			wantRequired: true,
		},
		{
			name:         "rural variant selected",
			declaration:  map[string]any{"addressType": "RURAL"},
			wantIDs:      []string{"addressType", "district"},
			wantRequired: false,
		},
		{
			name:        "neither variant visible",
			declaration: map[string]any{},
			wantIDs:     []string{"addressType"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := r.VisibleFields(cfg, action.TypeDeclare, tt.declaration)
			if err != nil {
				t.Fatalf("VisibleFields() error = %v", err)
			}
			var ids []string
			for _, f := range fields {
				ids = append(ids, f.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("VisibleFields() IDs = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("VisibleFields() IDs = %v, want %v", ids, tt.wantIDs)
					break
				}
			}
			if got := Required(fields, "district"); got != tt.wantRequired {
				t.Errorf("Required(district) = %v, want %v", got, tt.wantRequired)
			}
		})
	}
}

func TestResolver_VisibleFields_PageConditional(t *testing.T) {
	r := newTestResolver(t)

	cfg := EventConfig{
		EventType: action.EventBirth,
		Pages: []Page{
			{
				ID:           "father",
				Kind:         PageForm,
				Conditionals: []string{`declaration.fatherKnown == true`},
				Fields: []FieldDefinition{
					// Always-visible field, but the page gate hides it.
					{ID: "father.name", Type: FieldText},
				},
			},
		},
	}

	fields, err := r.VisibleFields(cfg, action.TypeDeclare, map[string]any{"fatherKnown": false})
	if err != nil {
		t.Fatalf("VisibleFields() error = %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("hidden page leaked %d fields", len(fields))
	}

	fields, err = r.VisibleFields(cfg, action.TypeDeclare, map[string]any{"fatherKnown": true})
	if err != nil {
		t.Fatalf("VisibleFields() error = %v", err)
	}
	if len(fields) != 1 || fields[0].ID != "father.name" {
		t.Errorf("VisibleFields() = %v, want [father.name]", fields)
	}
}

func TestResolver_ReviewAndAnnotationPages(t *testing.T) {
	r := newTestResolver(t)

	cfg := EventConfig{
		EventType: action.EventBirth,
		Pages: []Page{
			{
				ID:     "child",
				Kind:   PageForm,
				Fields: []FieldDefinition{{ID: "child.name", Type: FieldText}},
			},
		},
		Review: map[action.Type][]Page{
			action.TypeRegister: {
				{
					ID:     "verify",
					Kind:   PageVerification,
					Fields: []FieldDefinition{{ID: "identityVerified", Type: FieldCheckbox, Required: true}},
				},
				{
					ID:   "registrar-notes",
					Kind: PageAnnotation,
					Fields: []FieldDefinition{
						{ID: "comment", Type: FieldText},
						{
							ID:           "escalationReason",
							Type:         FieldText,
							Conditionals: []string{`has(declaration.escalated) && declaration.escalated == true`},
						},
					},
				},
			},
		},
	}

	t.Run("review pages join declaration pages", func(t *testing.T) {
		fields, err := r.VisibleFields(cfg, action.TypeRegister, map[string]any{})
		if err != nil {
			t.Fatalf("VisibleFields() error = %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("VisibleFields() got %d fields, want 2", len(fields))
		}
		if fields[1].ID != "identityVerified" || fields[1].PageKind != PageVerification {
			t.Errorf("fields[1] = %+v, want identityVerified on a verification page", fields[1])
		}
	})

	t.Run("review pages absent for other actions", func(t *testing.T) {
		fields, err := r.VisibleFields(cfg, action.TypeDeclare, map[string]any{})
		if err != nil {
			t.Fatalf("VisibleFields() error = %v", err)
		}
		if len(fields) != 1 {
			t.Errorf("VisibleFields() got %d fields, want 1", len(fields))
		}
	})

	t.Run("annotation fields resolved against annotation alone", func(t *testing.T) {
		fields, err := r.AnnotationFields(cfg, action.TypeRegister, map[string]any{"escalated": true})
		if err != nil {
			t.Fatalf("AnnotationFields() error = %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("AnnotationFields() got %d fields, want 2", len(fields))
		}

		fields, err = r.AnnotationFields(cfg, action.TypeRegister, nil)
		if err != nil {
			t.Fatalf("AnnotationFields() error = %v", err)
		}
		if len(fields) != 1 || fields[0].ID != "comment" {
			t.Errorf("AnnotationFields() = %v, want [comment]", fields)
		}
	})

	t.Run("annotation pages excluded from declaration fields", func(t *testing.T) {
		fields, err := r.VisibleFields(cfg, action.TypeRegister, map[string]any{"escalated": true})
		if err != nil {
			t.Fatalf("VisibleFields() error = %v", err)
		}
		for _, f := range fields {
			if f.PageKind == PageAnnotation {
				t.Errorf("annotation field %q leaked into declaration fields", f.ID)
			}
		}
	})
}

func TestRequired(t *testing.T) {
	fields := []VisibleField{
		{FieldDefinition: FieldDefinition{ID: "a", Required: false}},
		{FieldDefinition: FieldDefinition{ID: "a", Required: true}},
		{FieldDefinition: FieldDefinition{ID: "b", Required: false}},
	}

	if !Required(fields, "a") {
		t.Error("Required(a) = false, want true when any visible definition requires it")
	}
	if Required(fields, "b") {
		t.Error("Required(b) = true, want false")
	}
	if Required(fields, "missing") {
		t.Error("Required(missing) = true, want false")
	}
}
