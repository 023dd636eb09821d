package service

import (
	"fmt"
	"strings"

	"github.com/lirancohen/vitals/validate"
)

// Code classifies an operation failure for callers.
type Code string

const (
	// CodeForbidden: the caller's scopes do not cover the action.
	// Fatal without new credentials.
	CodeForbidden Code = "FORBIDDEN"

	// CodeBadRequest: validation failed; Fields enumerates every
	// offending field.
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeConflict: a state-machine violation. Retryable only after the
	// caller re-reads current state.
	CodeConflict Code = "CONFLICT"

	// CodeNotFound: unknown record or action ID.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnavailable: an upstream collaborator failed; nothing was
	// persisted and the same call is safe to retry.
	CodeUnavailable Code = "UNAVAILABLE"
)

// Stable machine-readable conflict reasons, suitable for UI branching.
const (
	ReasonCorrectionPending   = "correction-pending"
	ReasonAlreadyAccepted     = "already-accepted"
	ReasonAlreadyRejected     = "already-rejected"
	ReasonUnknownOriginal     = "unknown-original-action"
	ReasonWrongActionType     = "wrong-action-type"
	ReasonAssignedToOther     = "assigned-to-other"
	ReasonEventExists         = "event-exists"
	ReasonRegistrationPending = "registration-pending"
	ReasonNotRegistered       = "not-registered"
	ReasonConcurrentUpdate    = "concurrent-update"
)

// Error is the structured failure a Service operation returns.
type Error struct {
	// Code classifies the failure.
	Code Code

	// Reason is a stable machine-readable string for conflict failures.
	Reason string

	// Fields enumerates every offending field for validation failures.
	Fields []validate.FieldError

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if len(e.Fields) > 0 {
		msgs := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			msgs[i] = f.Error()
		}
		fmt.Fprintf(&b, ": %s", strings.Join(msgs, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against another *Error by code, and by reason when the
// target specifies one. Enables errors.Is(err, &Error{Code: CodeConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	if t.Reason != "" && e.Reason != t.Reason {
		return false
	}
	return true
}

func errForbidden(err error) *Error {
	return &Error{Code: CodeForbidden, Err: err}
}

func errBadRequest(fields []validate.FieldError) *Error {
	return &Error{Code: CodeBadRequest, Fields: fields}
}

func errConflict(reason string) *Error {
	return &Error{Code: CodeConflict, Reason: reason}
}

func errNotFound(err error) *Error {
	return &Error{Code: CodeNotFound, Err: err}
}

func errUnavailable(err error) *Error {
	return &Error{Code: CodeUnavailable, Err: err}
}
