package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/auth"
	"github.com/lirancohen/vitals/cache"
	"github.com/lirancohen/vitals/confirm"
	"github.com/lirancohen/vitals/project"
	"github.com/lirancohen/vitals/schema"
	"github.com/lirancohen/vitals/validate"
)

// Service exposes the record operations. All methods are safe for
// concurrent use: per-record ordering is the store's responsibility, and
// the service holds no cross-request mutable state besides the store and
// the cache.
type Service struct {
	store     action.Store
	schemas   SchemaSource
	confirmer confirm.Confirmer
	cache     cache.Cache
	log       Logger
	secret    []byte
	now       func() time.Time
	newID     func() string
	resolver  *schema.Resolver
}

// New creates a Service from the given configuration.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.withDefaults()

	resolver, err := schema.NewResolver()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     c.Store,
		schemas:   c.Schemas,
		confirmer: c.Confirmer,
		cache:     c.Cache,
		log:       c.Logger,
		secret:    c.TokenSecret,
		now:       c.Now,
		newID:     c.NewID,
		resolver:  resolver,
	}, nil
}

// Submission is an incoming action request: the record it targets, the
// client's idempotency token, and the partial payload.
type Submission struct {
	EventID       string
	TransactionID string
	Declaration   action.Declaration
	Annotation    action.Annotation
}

// CreateInput creates a new record.
type CreateInput struct {
	// EventID is the client-generated record ID. Optional; generated
	// when empty. Supplying one makes creation retries idempotent.
	EventID string

	Type          action.EventType
	TransactionID string
}

// correctionGuarded lists the state-changing action types rejected while
// a correction is pending.
var correctionGuarded = map[action.Type]bool{
	action.TypeDeclare:  true,
	action.TypeValidate: true,
	action.TypeRegister: true,
	action.TypeReject:   true,
	action.TypeArchive:  true,
}

// assignmentGuarded lists the review action types that require the caller
// to hold the assignment when the record is assigned.
var assignmentGuarded = map[action.Type]bool{
	action.TypeValidate:          true,
	action.TypeRegister:          true,
	action.TypeReject:            true,
	action.TypeArchive:           true,
	action.TypeRequestCorrection: true,
	action.TypeApproveCorrection: true,
	action.TypeRejectCorrection:  true,
}

// validated lists the action types whose payload runs schema validation.
var validated = map[action.Type]bool{
	action.TypeDeclare:           true,
	action.TypeValidate:          true,
	action.TypeRegister:          true,
	action.TypeRequestCorrection: true,
}

// CreateEvent creates a record with its CREATE action in one atomic
// store write. Retrying with the same EventID and TransactionID returns
// the existing record's state unchanged.
func (s *Service) CreateEvent(ctx context.Context, token string, in CreateInput) (project.State, error) {
	claims, err := s.authorize(token, action.TypeCreate)
	if err != nil {
		return project.State{}, err
	}

	id := in.EventID
	if id == "" {
		id = s.newID()
	}

	a := s.newAction(action.TypeCreate, action.StatusAccepted, Submission{TransactionID: in.TransactionID}, claims.Subject)
	a.Sequence = 1

	ev := action.Event{
		ID:         id,
		Type:       in.Type,
		TrackingID: s.trackingID(in.Type),
		CreatedAt:  s.now(),
		Actions:    []action.Action{a},
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		if errors.Is(err, action.ErrEventExists) {
			existing, getErr := s.store.GetEvent(ctx, id)
			if getErr != nil {
				return project.State{}, errUnavailable(getErr)
			}
			if _, dup := existing.FindTransaction(in.TransactionID); dup {
				return project.Resolve(existing), nil
			}
			return project.State{}, errConflict(ReasonEventExists)
		}
		return project.State{}, errUnavailable(err)
	}

	s.log.Info("event created", "event_id", id, "type", in.Type, "created_by", claims.Subject)
	return s.finish(ctx, ev), nil
}

// Declare submits or updates a record's declaration.
func (s *Service) Declare(ctx context.Context, token string, sub Submission) (project.State, error) {
	return s.submitImmediate(ctx, token, action.TypeDeclare, sub)
}

// Validate marks a declared record as reviewed and valid.
func (s *Service) Validate(ctx context.Context, token string, sub Submission) (project.State, error) {
	return s.submitImmediate(ctx, token, action.TypeValidate, sub)
}

// Reject sends a declared record back with a reviewer's reason.
func (s *Service) Reject(ctx context.Context, token string, sub Submission) (project.State, error) {
	return s.submitImmediate(ctx, token, action.TypeReject, sub)
}

// Archive retires a record from active processing.
func (s *Service) Archive(ctx context.Context, token string, sub Submission) (project.State, error) {
	return s.submitImmediate(ctx, token, action.TypeArchive, sub)
}

// Assign gives the caller exclusive hold of the record. Assigning a
// record held by someone else fails with CONFLICT.
func (s *Service) Assign(ctx context.Context, token string, sub Submission) (project.State, error) {
	p, dup, err := s.prepare(ctx, token, action.TypeAssign, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}
	check := func(p prepared) error {
		if p.prior.AssignedTo != "" && p.prior.AssignedTo != p.claims.Subject {
			return errConflict(ReasonAssignedToOther)
		}
		return nil
	}
	if err := check(p); err != nil {
		return project.State{}, err
	}
	return s.append(ctx, token, p, action.TypeAssign, action.StatusAccepted, sub, "", check)
}

// Unassign releases the caller's hold of the record.
func (s *Service) Unassign(ctx context.Context, token string, sub Submission) (project.State, error) {
	p, dup, err := s.prepare(ctx, token, action.TypeUnassign, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}
	check := func(p prepared) error {
		if p.prior.AssignedTo != "" && p.prior.AssignedTo != p.claims.Subject {
			return errConflict(ReasonAssignedToOther)
		}
		return nil
	}
	if err := check(p); err != nil {
		return project.State{}, err
	}
	return s.append(ctx, token, p, action.TypeUnassign, action.StatusAccepted, sub, "", check)
}

// State resolves the record's current state. Reads go through the cache
// when one is configured; the log remains the source of truth.
func (s *Service) State(ctx context.Context, token string, eventID string) (project.State, error) {
	if _, err := auth.ParseToken(token, s.secret); err != nil {
		return project.State{}, errForbidden(err)
	}

	if st, ok, err := s.cache.Get(ctx, eventID); err == nil && ok {
		return st, nil
	} else if err != nil {
		s.log.Warn("state cache read failed", "event_id", eventID, "error", err)
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return project.State{}, mapStoreError(err)
	}
	st := project.Resolve(ev)
	if err := s.cache.Set(ctx, eventID, st); err != nil {
		s.log.Warn("state cache write failed", "event_id", eventID, "error", err)
	}
	return st, nil
}

// Timeline returns the record's audit trail.
func (s *Service) Timeline(ctx context.Context, token string, eventID string) ([]project.TimelineEntry, error) {
	if _, err := auth.ParseToken(token, s.secret); err != nil {
		return nil, errForbidden(err)
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return project.Timeline(ev), nil
}

// submitImmediate runs the full pipeline for an action that takes effect
// without external confirmation: authorize, duplicate fail-fast, guards,
// validation, append as Accepted.
func (s *Service) submitImmediate(ctx context.Context, token string, t action.Type, sub Submission) (project.State, error) {
	p, dup, err := s.prepare(ctx, token, t, sub)
	if err != nil {
		return project.State{}, err
	}
	if dup != nil {
		return *dup, nil
	}

	var recheck func(prepared) error
	if validated[t] {
		recheck = func(p prepared) error {
			return s.validatePayload(ctx, token, t, p, sub)
		}
		if err := recheck(p); err != nil {
			return project.State{}, err
		}
	}

	return s.append(ctx, token, p, t, action.StatusAccepted, sub, "", recheck)
}

// prepared carries the request context shared by every pipeline.
type prepared struct {
	claims *auth.Claims
	event  action.Event
	prior  project.State
}

// prepare runs the common front half of every submission: token and scope
// checks, the duplicate-transaction fail-fast, record load, and the
// correction and assignment guards. A non-nil second return is the
// resolved state for an idempotent duplicate: the caller returns it
// unchanged without validating or appending anything.
func (s *Service) prepare(ctx context.Context, token string, t action.Type, sub Submission) (prepared, *project.State, error) {
	claims, err := s.authorize(token, t)
	if err != nil {
		return prepared{}, nil, err
	}

	// Fail fast on a known transaction ID before any validation work.
	// Append remains the authoritative, race-free check.
	dup, err := s.store.HasDuplicate(ctx, sub.EventID, sub.TransactionID)
	if err != nil {
		return prepared{}, nil, mapStoreError(err)
	}

	ev, err := s.store.GetEvent(ctx, sub.EventID)
	if err != nil {
		return prepared{}, nil, mapStoreError(err)
	}
	if dup {
		st := project.Resolve(ev)
		s.log.Debug("duplicate transaction, returning existing state",
			"event_id", sub.EventID, "transaction_id", sub.TransactionID)
		return prepared{}, &st, nil
	}

	if correctionGuarded[t] {
		if _, pending := project.PendingCorrection(ev); pending {
			return prepared{}, nil, errConflict(ReasonCorrectionPending)
		}
	}

	prior := project.Resolve(ev)
	if assignmentGuarded[t] && prior.AssignedTo != "" && prior.AssignedTo != claims.Subject {
		return prepared{}, nil, errConflict(ReasonAssignedToOther)
	}

	return prepared{claims: claims, event: ev, prior: prior}, nil, nil
}

// validatePayload fetches the event's schema and validates the submission
// against it, surfacing the complete field-error list on failure.
func (s *Service) validatePayload(ctx context.Context, token string, t action.Type, p prepared, sub Submission) error {
	cfg, err := s.schemas.GetEventConfiguration(ctx, p.event.Type, token)
	if err != nil {
		return errUnavailable(err)
	}

	fieldErrs, err := validate.Action(s.resolver, cfg, t, p.prior.Declaration, validate.Update{
		Declaration: sub.Declaration,
		Annotation:  sub.Annotation,
	})
	if err != nil {
		// A conditional that fails to compile or evaluate is a schema
		// problem, not a client mistake.
		return errUnavailable(err)
	}
	if len(fieldErrs) > 0 {
		return errBadRequest(fieldErrs)
	}
	return nil
}

// maxAppendRetries bounds how often a lost append race is retried before
// giving up with CONFLICT.
const maxAppendRetries = 3

// append builds the action and writes it via appendAction.
func (s *Service) append(ctx context.Context, token string, p prepared, t action.Type, status action.Status, sub Submission, originalActionID string, recheck func(prepared) error) (project.State, error) {
	a := s.newAction(t, status, sub, p.claims.Subject)
	a.OriginalActionID = originalActionID
	return s.appendAction(ctx, token, p, t, sub, a, recheck)
}

// appendAction writes the action with optimistic concurrency: the append
// carries the last sequence the guards were evaluated against, so a
// concurrent write to the same record surfaces as a sequence conflict.
// On conflict the record is re-read, the shared guards re-run through
// prepare, and the operation's own recheck re-applied before retrying.
func (s *Service) appendAction(ctx context.Context, token string, p prepared, t action.Type, sub Submission, a action.Action, recheck func(prepared) error) (project.State, error) {
	for attempt := 0; ; attempt++ {
		appended, err := s.store.Append(ctx, sub.EventID, p.prior.LastSequence, a)
		if err == nil {
			s.log.Info("action appended",
				"event_id", sub.EventID, "action", t, "status", a.Status, "created_by", p.claims.Subject)
			return s.finish(ctx, appended), nil
		}
		if !errors.Is(err, action.ErrSequenceConflict) {
			return project.State{}, mapStoreError(err)
		}
		if attempt >= maxAppendRetries {
			return project.State{}, errConflict(ReasonConcurrentUpdate)
		}

		s.log.Debug("append lost a race, re-checking",
			"event_id", sub.EventID, "action", t, "attempt", attempt+1)

		var dup *project.State
		p, dup, err = s.prepare(ctx, token, t, sub)
		if err != nil {
			return project.State{}, err
		}
		if dup != nil {
			return *dup, nil
		}
		if recheck != nil {
			if err := recheck(p); err != nil {
				return project.State{}, err
			}
		}
	}
}

// finish invalidates and refreshes the cache after an append and resolves
// the new state.
func (s *Service) finish(ctx context.Context, ev action.Event) project.State {
	if err := s.cache.Invalidate(ctx, ev.ID); err != nil {
		s.log.Warn("state cache invalidation failed", "event_id", ev.ID, "error", err)
	}
	st := project.Resolve(ev)
	if err := s.cache.Set(ctx, ev.ID, st); err != nil {
		s.log.Warn("state cache write failed", "event_id", ev.ID, "error", err)
	}
	return st
}

// authorize parses the bearer token and checks the scope for the action.
func (s *Service) authorize(token string, t action.Type) (*auth.Claims, error) {
	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return nil, errForbidden(err)
	}
	if err := auth.Authorize(claims, t); err != nil {
		return nil, errForbidden(err)
	}
	return claims, nil
}

// newAction builds an action from a submission.
func (s *Service) newAction(t action.Type, status action.Status, sub Submission, createdBy string) action.Action {
	return action.Action{
		ID:            s.newID(),
		Type:          t,
		Status:        status,
		TransactionID: sub.TransactionID,
		Declaration:   sub.Declaration,
		Annotation:    sub.Annotation,
		CreatedBy:     createdBy,
		CreatedAt:     s.now(),
	}
}

// trackingID derives the short human-facing reference for a new record.
func (s *Service) trackingID(t action.EventType) string {
	prefix := "R"
	switch t {
	case action.EventBirth:
		prefix = "B"
	case action.EventDeath:
		prefix = "D"
	case action.EventMarriage:
		prefix = "M"
	}
	raw := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(raw) > 9 {
		raw = raw[:9]
	}
	return prefix + raw
}

// mapStoreError converts store errors to service errors.
func mapStoreError(err error) *Error {
	switch {
	case errors.Is(err, action.ErrEventNotFound), errors.Is(err, action.ErrActionNotFound):
		return errNotFound(err)
	case errors.Is(err, action.ErrSequenceConflict):
		return errConflict(ReasonConcurrentUpdate)
	default:
		return errUnavailable(err)
	}
}
