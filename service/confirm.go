package service

import (
	"context"
	"errors"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/confirm"
	"github.com/lirancohen/vitals/project"
	"github.com/lirancohen/vitals/validate"
)

// Register submits a record for registration. Registration is a
// confirmable action: after validation, the external confirmation
// endpoint decides the initial status.
//
//   - synchronous accept: appended Accepted, with the confirmation
//     payload (the registration number) on the action's annotation
//   - synchronous reject: appended Rejected
//   - accepted for later processing: appended Requested; a later
//     ConfirmRegistration or RejectRegistration call resolves it
//   - transport error or invalid payload: nothing persisted; the caller
//     retries with the same transaction ID
func (s *Service) Register(ctx context.Context, token string, sub Submission) (project.State, error) {
	p, dup, err := s.prepare(ctx, token, action.TypeRegister, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}

	check := func(p prepared) error {
		if p.prior.Status == project.StatusRegistered {
			return errConflict(ReasonAlreadyAccepted)
		}
		if _, pending := project.PendingRegistration(p.event); pending {
			return errConflict(ReasonRegistrationPending)
		}
		return nil
	}
	if err := check(p); err != nil {
		return project.State{}, err
	}

	if err := s.validatePayload(ctx, token, action.TypeRegister, p, sub); err != nil {
		return project.State{}, err
	}

	// The action is built before the outbound call so the endpoint sees
	// the ID it may later be asked about, but nothing is persisted until
	// the decision is in hand.
	a := s.newAction(action.TypeRegister, "", sub, p.claims.Subject)

	outcome, err := s.confirmer.Confirm(ctx, p.event.Type, action.TypeRegister, confirm.Request{
		ActionID:    a.ID,
		Declaration: sub.Declaration,
		Annotation:  sub.Annotation,
	})
	if err != nil {
		// Transport failure or a malformed confirmation payload: nothing
		// persisted, same transaction ID safe to retry.
		s.log.Warn("confirmation call failed", "event_id", sub.EventID, "error", err)
		return project.State{}, errUnavailable(err)
	}

	switch outcome.Decision {
	case confirm.DecisionAccepted:
		a.Status = action.StatusAccepted
		a.Annotation = mergeAnnotation(a.Annotation, outcome.Payload)
	case confirm.DecisionRejected:
		a.Status = action.StatusRejected
	case confirm.DecisionPending:
		a.Status = action.StatusRequested
	default:
		return project.State{}, errUnavailable(errors.New("unknown confirmation decision"))
	}

	// The decision is already in hand, so a lost append race only
	// re-checks the guards; the endpoint is not called again.
	st, err := s.appendAction(ctx, token, p, action.TypeRegister, sub, a, check)
	if err != nil {
		return project.State{}, err
	}

	s.log.Info("registration decided",
		"event_id", sub.EventID, "status", a.Status, "created_by", p.claims.Subject)
	return st, nil
}

// ResolutionInput resolves a Requested action.
type ResolutionInput struct {
	EventID          string
	OriginalActionID string
	TransactionID    string

	// Payload is the confirmation payload for an accept; for
	// registrations it must carry the registration number.
	Payload map[string]any

	// Annotation carries resolution metadata, for example a rejection
	// reason.
	Annotation action.Annotation
}

// ConfirmRegistration resolves a pending registration as accepted,
// recording the confirmation payload.
func (s *Service) ConfirmRegistration(ctx context.Context, token string, in ResolutionInput) (project.State, error) {
	if err := confirm.ValidatePayload(action.TypeRegister, in.Payload); err != nil {
		return project.State{}, errBadRequest([]validate.FieldError{{
			FieldID: "registrationNumber",
			Message: "registrationNumber must be a non-empty string",
		}})
	}
	ann := mergeAnnotation(in.Annotation, in.Payload)
	return s.resolveRequested(ctx, token, action.TypeRegister, action.TypeRegister, action.StatusAccepted, in, ann)
}

// RejectRegistration resolves a pending registration as rejected.
func (s *Service) RejectRegistration(ctx context.Context, token string, in ResolutionInput) (project.State, error) {
	return s.resolveRequested(ctx, token, action.TypeRegister, action.TypeRegister, action.StatusRejected, in, in.Annotation)
}

// resolveRequested appends the accept-or-reject action for a Requested
// original. Exactly one resolution may exist per requested action;
// retrying the same resolution with the same transaction ID is
// idempotent, while a conflicting or repeated resolution under a new
// transaction ID fails with CONFLICT.
func (s *Service) resolveRequested(ctx context.Context, token string, origType, resolveType action.Type, status action.Status, in ResolutionInput, annotation action.Annotation) (project.State, error) {
	sub := Submission{
		EventID:       in.EventID,
		TransactionID: in.TransactionID,
		Annotation:    annotation,
	}

	p, dup, err := s.prepare(ctx, token, resolveType, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}

	check := func(p prepared) error {
		orig, ok := p.event.FindAction(in.OriginalActionID)
		if !ok {
			return errConflict(ReasonUnknownOriginal)
		}
		if orig.Type != origType {
			return errConflict(ReasonWrongActionType)
		}
		if res, resolved := p.event.ResolutionOf(orig.ID); resolved {
			return errConflict(resolutionReason(res))
		}
		// The transition table is what makes the resolution legal: only a
		// Requested original may move to a terminal status.
		if !action.CanTransition(orig.Status, terminalStatus(resolveType, status)) {
			if orig.Status == action.StatusRejected {
				return errConflict(ReasonAlreadyRejected)
			}
			return errConflict(ReasonAlreadyAccepted)
		}
		return nil
	}
	if err := check(p); err != nil {
		return project.State{}, err
	}

	return s.append(ctx, token, p, resolveType, status, sub, in.OriginalActionID, check)
}

// terminalStatus maps a resolution onto the original's terminal state.
// Correction resolutions encode accept/reject in the action type and are
// themselves immediate accepted actions.
func terminalStatus(resolveType action.Type, status action.Status) action.Status {
	if resolveType == action.TypeRejectCorrection {
		return action.StatusRejected
	}
	return status
}

// resolutionReason distinguishes "already accepted" from "already
// rejected" for exclusivity conflicts.
func resolutionReason(res action.Action) string {
	if res.Type == action.TypeRejectCorrection || res.Status == action.StatusRejected {
		return ReasonAlreadyRejected
	}
	return ReasonAlreadyAccepted
}

// mergeAnnotation overlays a confirmation payload onto an annotation
// without mutating either input.
func mergeAnnotation(ann action.Annotation, payload map[string]any) action.Annotation {
	if len(payload) == 0 {
		return ann
	}
	out := make(action.Annotation, len(ann)+len(payload))
	for k, v := range ann {
		out[k] = v
	}
	for k, v := range payload {
		out[k] = v
	}
	return out
}
