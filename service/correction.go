package service

import (
	"context"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/project"
)

// RequestCorrection proposes a correction to a registered record. The
// request is appended Requested; the corrected fields do not take effect
// until ApproveCorrection accepts them.
//
// At most one correction may be pending per record: a second request
// while one is unresolved fails with CONFLICT, and succeeds again only
// once the first is approved or rejected.
func (s *Service) RequestCorrection(ctx context.Context, token string, sub Submission) (project.State, error) {
	p, dup, err := s.prepare(ctx, token, action.TypeRequestCorrection, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}

	check := func(p prepared) error {
		if p.prior.Status != project.StatusRegistered {
			return errConflict(ReasonNotRegistered)
		}
		if _, pending := project.PendingCorrection(p.event); pending {
			return errConflict(ReasonCorrectionPending)
		}
		return s.validatePayload(ctx, token, action.TypeRequestCorrection, p, sub)
	}
	if err := check(p); err != nil {
		return project.State{}, err
	}

	return s.append(ctx, token, p, action.TypeRequestCorrection, action.StatusRequested, sub, "", check)
}

// ApproveCorrection resolves a pending correction request: the corrected
// fields become effective and the record keeps its pre-correction status.
func (s *Service) ApproveCorrection(ctx context.Context, token string, in ResolutionInput) (project.State, error) {
	return s.resolveRequested(ctx, token, action.TypeRequestCorrection, action.TypeApproveCorrection, action.StatusAccepted, in, in.Annotation)
}

// RejectCorrection resolves a pending correction request without applying
// it; the record's status is unchanged and the reason is recorded on the
// resolution's annotation under "reason".
func (s *Service) RejectCorrection(ctx context.Context, token string, in ResolutionInput) (project.State, error) {
	return s.resolveRequested(ctx, token, action.TypeRequestCorrection, action.TypeRejectCorrection, action.StatusAccepted, in, in.Annotation)
}
