package validate

import (
	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/schema"
)

// Update is an incoming action's payload: the declaration fields it
// touches plus its self-contained annotation.
type Update struct {
	Declaration action.Declaration
	Annotation  action.Annotation
}

// Action validates an incoming action against the event's declaration
// schema and the action's review pages.
//
// The incoming declaration is merged onto the prior declaration first:
// visibility of untouched fields depends on the full picture, not the
// partial payload. Every visible field is then checked against the merged
// declaration union the incoming annotation. Annotation-only pages are
// validated against the incoming annotation alone.
//
// The returned slice enumerates every offending field; it is never
// short-circuited after the first failure. A non-nil error reports a
// schema problem (for example a conditional that does not compile), not a
// validation failure.
func Action(res *schema.Resolver, cfg schema.EventConfig, actionType action.Type, prior map[string]any, upd Update) ([]FieldError, error) {
	candidate := Merge(prior, upd.Declaration)

	visible, err := res.VisibleFields(cfg, actionType, candidate)
	if err != nil {
		return nil, err
	}

	// Verification fields live in the annotation, so checks run against
	// the union of the candidate declaration and the incoming annotation.
	values := Merge(candidate, upd.Annotation)

	var errs []FieldError
	seen := make(map[string]struct{})
	for _, f := range visible {
		fe := Field(f, visible, values)
		if fe == nil {
			continue
		}
		// Duplicate IDs may be visible more than once; report each
		// offending ID once.
		if _, dup := seen[fe.FieldID]; dup {
			continue
		}
		seen[fe.FieldID] = struct{}{}
		errs = append(errs, *fe)
	}

	annFields, err := res.AnnotationFields(cfg, actionType, upd.Annotation)
	if err != nil {
		return nil, err
	}
	for _, f := range annFields {
		fe := Field(f, annFields, map[string]any(upd.Annotation))
		if fe == nil {
			continue
		}
		if _, dup := seen[fe.FieldID]; dup {
			continue
		}
		seen[fe.FieldID] = struct{}{}
		errs = append(errs, *fe)
	}

	return errs, nil
}
