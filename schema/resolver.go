package schema

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/lirancohen/vitals/action"
)

// Resolver evaluates field and page conditionals to resolve the set of
// visible fields for a candidate declaration. Conditionals are CEL
// expressions over a single `declaration` map variable, for example:
//
//	has(declaration.district) && declaration.district != ""
//
// A Resolver is safe for concurrent use; expressions are compiled per
// resolution so no state outlives a request.
type Resolver struct {
	env *cel.Env
}

// NewResolver creates a Resolver with the conditional evaluation
// environment.
func NewResolver() (*Resolver, error) {
	env, err := cel.NewEnv(
		cel.Variable("declaration", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create conditional env: %w", err)
	}
	return &Resolver{env: env}, nil
}

// ConditionalError reports a conditional expression that failed to
// compile or evaluate.
type ConditionalError struct {
	Expression string
	Err        error
}

func (e *ConditionalError) Error() string {
	return fmt.Sprintf("conditional %q: %v", e.Expression, e.Err)
}

func (e *ConditionalError) Unwrap() error {
	return e.Err
}

// VisibleFields resolves the ordered list of visible fields for the
// event's declaration pages plus the review pages of the given action
// type, against the candidate declaration. Duplicate field IDs whose
// conditionals both hold are all included.
//
// Only form and verification pages participate; annotation pages are
// resolved separately via AnnotationFields.
func (r *Resolver) VisibleFields(cfg EventConfig, actionType action.Type, declaration map[string]any) ([]VisibleField, error) {
	pages := make([]Page, 0, len(cfg.Pages))
	pages = append(pages, cfg.Pages...)
	pages = append(pages, cfg.Review[actionType]...)

	var out []VisibleField
	for _, p := range pages {
		if p.Kind == PageAnnotation {
			continue
		}
		fields, err := r.visiblePageFields(p, declaration)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// AnnotationFields resolves the visible fields of the annotation pages for
// the given action type. Conditionals on annotation pages and fields are
// evaluated against the action's annotation alone: annotation is
// self-contained per action and never merged with history.
func (r *Resolver) AnnotationFields(cfg EventConfig, actionType action.Type, annotation map[string]any) ([]VisibleField, error) {
	var out []VisibleField
	for _, p := range cfg.Review[actionType] {
		if p.Kind != PageAnnotation {
			continue
		}
		fields, err := r.visiblePageFields(p, annotation)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// visiblePageFields returns the page's visible fields, or nothing if the
// page itself is hidden.
func (r *Resolver) visiblePageFields(p Page, values map[string]any) ([]VisibleField, error) {
	pageVisible, err := r.Visible(p.Conditionals, values)
	if err != nil {
		return nil, err
	}
	if !pageVisible {
		return nil, nil
	}

	var out []VisibleField
	for _, f := range p.Fields {
		visible, err := r.Visible(f.Conditionals, values)
		if err != nil {
			return nil, err
		}
		if visible {
			out = append(out, VisibleField{
				FieldDefinition: f,
				PageID:          p.ID,
				PageKind:        p.Kind,
			})
		}
	}
	return out, nil
}

// Visible evaluates conditionals conjunctively against the given values.
// No conditionals means always visible.
func (r *Resolver) Visible(conditionals []string, values map[string]any) (bool, error) {
	if values == nil {
		values = map[string]any{}
	}
	for _, expr := range conditionals {
		ok, err := r.eval(expr, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// eval compiles and evaluates one conditional expression.
func (r *Resolver) eval(expr string, values map[string]any) (bool, error) {
	ast, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, &ConditionalError{Expression: expr, Err: issues.Err()}
	}

	prg, err := r.env.Program(ast)
	if err != nil {
		return false, &ConditionalError{Expression: expr, Err: err}
	}

	val, _, err := prg.Eval(map[string]any{"declaration": values})
	if err != nil {
		return false, &ConditionalError{Expression: expr, Err: err}
	}

	b, ok := val.Value().(bool)
	if !ok {
		return false, &ConditionalError{Expression: expr, Err: fmt.Errorf("expression is not boolean (got %T)", val.Value())}
	}
	return b, nil
}
