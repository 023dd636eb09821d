package action

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by Store implementations.
var (
	// ErrEventNotFound indicates the record does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventExists indicates a record with the same ID already exists.
	ErrEventExists = errors.New("event already exists")

	// ErrActionNotFound indicates no action with the given ID exists on
	// the record.
	ErrActionNotFound = errors.New("action not found")

	// ErrDuplicateAction indicates an action with the same ID already
	// exists on the record.
	ErrDuplicateAction = errors.New("duplicate action ID")

	// ErrSequenceConflict indicates another append landed on the record
	// since the caller last read it.
	ErrSequenceConflict = errors.New("sequence conflict")
)

// SequenceConflictError provides details about a sequence conflict.
type SequenceConflictError struct {
	EventID  string
	Expected int64
	Actual   int64
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("sequence conflict for event %s: expected %d, got %d", e.EventID, e.Expected, e.Actual)
}

func (e *SequenceConflictError) Unwrap() error {
	return ErrSequenceConflict
}

// NotFoundError provides details about a missing record.
type NotFoundError struct {
	EventID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %s not found", e.EventID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEventNotFound
}

// Store defines the interface for action-log persistence.
// Implementations must be safe for concurrent use and must serialize
// appends per record: two concurrent appends to the same record observe
// each other, so duplicate-transaction detection and the expected-sequence
// check are race-free. Appends to different records are independent.
type Store interface {
	// CreateEvent persists a new record together with its initial actions
	// in one atomic write. The caller assigns the initial sequences,
	// starting at 1. Returns ErrEventExists if the ID is already taken;
	// nothing is written in that case.
	CreateEvent(ctx context.Context, ev Event) error

	// GetEvent loads a record with its full action log in log order.
	// Returns ErrEventNotFound if the record doesn't exist.
	GetEvent(ctx context.Context, eventID string) (Event, error)

	// Append adds one action to the record's log with at-most-once
	// semantics per transaction ID: if an action with the same
	// TransactionID already exists, the record is returned unchanged and
	// no new action is written. Otherwise lastSequence must match the
	// record's current highest sequence; the append fails with
	// ErrSequenceConflict when another write landed since the caller read
	// the record. The action is written with sequence lastSequence + 1.
	// Returns the record including the appended (or pre-existing) action.
	// Returns ErrEventNotFound if the record doesn't exist and
	// ErrDuplicateAction if the action ID is already taken.
	Append(ctx context.Context, eventID string, lastSequence int64, a Action) (Event, error)

	// HasDuplicate reports whether an action with the given transaction
	// ID already exists on the record. Used as a fail-fast conflict check
	// ahead of validation work; Append remains the authoritative check.
	HasDuplicate(ctx context.Context, eventID, transactionID string) (bool, error)
}
