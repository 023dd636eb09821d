// Package action provides the action-log types and storage interfaces for
// Vitals' event-sourced registration model.
package action

import (
	"time"
)

// EventType classifies the life event a record documents.
type EventType string

const (
	EventBirth    EventType = "birth"
	EventDeath    EventType = "death"
	EventMarriage EventType = "marriage"
)

// Type classifies actions in the record lifecycle. The vocabulary is
// closed: action types are fixed at compile time, not user-extensible.
type Type string

const (
	// Record lifecycle actions
	TypeCreate   Type = "CREATE"
	TypeDeclare  Type = "DECLARE"
	TypeValidate Type = "VALIDATE"
	TypeRegister Type = "REGISTER"
	TypeReject   Type = "REJECT"
	TypeArchive  Type = "ARCHIVE"

	// Assignment actions
	TypeAssign   Type = "ASSIGN"
	TypeUnassign Type = "UNASSIGN"

	// Correction actions
	TypeRequestCorrection Type = "REQUEST_CORRECTION"
	TypeApproveCorrection Type = "APPROVE_CORRECTION"
	TypeRejectCorrection  Type = "REJECT_CORRECTION"
)

// Status is the confirmation state of an action. Immediate actions are
// created Accepted; confirmable actions start Requested or are resolved
// synchronously to Accepted or Rejected.
type Status string

const (
	StatusAccepted  Status = "Accepted"
	StatusRequested Status = "Requested"
	StatusRejected  Status = "Rejected"
)

// CanTransition reports whether an action status may move from one state
// to another. Accepted and Rejected are terminal; Requested may only be
// resolved to Accepted or Rejected. The zero Status ("") represents the
// initial state before the action exists.
func CanTransition(from, to Status) bool {
	switch from {
	case "":
		return to == StatusAccepted || to == StatusRequested || to == StatusRejected
	case StatusRequested:
		return to == StatusAccepted || to == StatusRejected
	default:
		return false
	}
}

// Declaration is a partial map of field id to value proposing an update to
// the record's declaration data. Values merge into the record's effective
// declaration once the carrying action is Accepted.
type Declaration map[string]any

// Annotation is action-scoped metadata (review comments, verification
// results). It is never merged into the persisted declaration.
type Annotation map[string]any

// Action is a single immutable entry in a record's log.
type Action struct {
	// ID is the unique identifier for this action (UUID).
	ID string `json:"id"`

	// Type classifies the action (e.g., "DECLARE").
	Type Type `json:"type"`

	// Status is the confirmation state of the action.
	Status Status `json:"status"`

	// TransactionID is the client-supplied idempotency token. At most one
	// action per transaction ID is ever appended to a record.
	TransactionID string `json:"transaction_id"`

	// Sequence provides strict ordering within a record (1, 2, 3, ...).
	// Sequences are gapless and assigned by the store on append.
	Sequence int64 `json:"sequence"`

	// Declaration is the proposed declaration update. May be empty for
	// actions that only carry annotation or metadata.
	Declaration Declaration `json:"declaration,omitempty"`

	// Annotation holds action-scoped metadata.
	Annotation Annotation `json:"annotation,omitempty"`

	// OriginalActionID points at the Requested action this accept/reject
	// action resolves. Empty otherwise.
	OriginalActionID string `json:"original_action_id,omitempty"`

	// CreatedBy identifies the principal that submitted the action.
	CreatedBy string `json:"created_by"`

	// CreatedAt records when the action was appended.
	CreatedAt time.Time `json:"created_at"`
}

// Event is a life-event record: an identity plus its append-only action
// log. The action sequence is insertion-ordered and never reordered,
// edited, or truncated.
type Event struct {
	// ID is the opaque record identifier (UUID).
	ID string `json:"id"`

	// Type is the life event being recorded. Fixed at creation.
	Type EventType `json:"type"`

	// TrackingID is the short human-facing reference for the record.
	TrackingID string `json:"tracking_id,omitempty"`

	// CreatedAt records when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// Actions is the append-only log, ordered by Sequence.
	Actions []Action `json:"actions"`
}

// FindAction returns the action with the given ID, or false if absent.
func (e Event) FindAction(actionID string) (Action, bool) {
	for _, a := range e.Actions {
		if a.ID == actionID {
			return a, true
		}
	}
	return Action{}, false
}

// FindTransaction returns the action carrying the given transaction ID,
// or false if absent.
func (e Event) FindTransaction(transactionID string) (Action, bool) {
	for _, a := range e.Actions {
		if a.TransactionID == transactionID {
			return a, true
		}
	}
	return Action{}, false
}

// ResolutionOf returns the accept/reject action that resolved the given
// requested action, or false if it is still pending.
func (e Event) ResolutionOf(actionID string) (Action, bool) {
	for _, a := range e.Actions {
		if a.OriginalActionID == actionID {
			return a, true
		}
	}
	return Action{}, false
}
