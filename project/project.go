// Package project provides pure projection functions that fold a record's
// action log into derived views.
//
// All functions in this package are pure: they take a record with its
// actions as input and return derived structures. They do not perform I/O
// or have side effects, so any reader recomputes identical projections
// from the same log. Projections are never the source of truth; the
// action log is.
package project

import (
	"time"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/validate"
)

// EventStatus represents the current lifecycle state of a record,
// derived from the most recent state-changing accepted action.
type EventStatus string

const (
	StatusCreated    EventStatus = "created"
	StatusDeclared   EventStatus = "declared"
	StatusValidated  EventStatus = "validated"
	StatusRegistered EventStatus = "registered"
	StatusRejected   EventStatus = "rejected"
	StatusArchived   EventStatus = "archived"
)

// Flags are derived boolean markers over the record's log.
type Flags struct {
	// RegistrationPending is set while a REGISTER action awaits external
	// confirmation.
	RegistrationPending bool `json:"registration_pending"`

	// CorrectionRequested is set while a correction request awaits
	// approval or rejection.
	CorrectionRequested bool `json:"correction_requested"`
}

// State is the current derived state of a record. It is computed on
// demand from the log and never persisted as the source of truth.
type State struct {
	EventID    string           `json:"event_id"`
	EventType  action.EventType `json:"event_type"`
	TrackingID string           `json:"tracking_id,omitempty"`

	// Declaration is the merged declaration data of all accepted actions,
	// in log order, later values overwriting earlier ones per field ID.
	Declaration map[string]any `json:"declaration"`

	Status EventStatus `json:"status"`
	Flags  Flags       `json:"flags"`

	// RegistrationNumber is set once a REGISTER action is accepted with a
	// confirmation payload.
	RegistrationNumber string `json:"registration_number,omitempty"`

	// AssignedTo is the user currently holding the record, if any.
	AssignedTo string `json:"assigned_to,omitempty"`

	// CorrectionRejectReason records why the latest correction request
	// was rejected, if it was.
	CorrectionRejectReason string `json:"correction_reject_reason,omitempty"`

	// LastSequence is the highest action sequence folded into this state.
	LastSequence int64 `json:"last_sequence"`
}

// Resolve folds a record's action log into its current state.
//
// Only accepted actions merge their declaration payload. Requested and
// rejected actions contribute to status and flag computation (a requested
// correction sets the CorrectionRequested flag) but their declaration is
// not merged until accepted. Fold order is log order.
func Resolve(ev action.Event) State {
	st := State{
		EventID:     ev.ID,
		EventType:   ev.Type,
		TrackingID:  ev.TrackingID,
		Declaration: map[string]any{},
		Status:      StatusCreated,
	}

	// Requested actions by ID, so resolutions can find their originals.
	requested := make(map[string]action.Action)

	for _, a := range ev.Actions {
		if a.Sequence > st.LastSequence {
			st.LastSequence = a.Sequence
		}

		switch a.Status {
		case action.StatusRequested:
			requested[a.ID] = a
			switch a.Type {
			case action.TypeRegister:
				st.Flags.RegistrationPending = true
			case action.TypeRequestCorrection:
				st.Flags.CorrectionRequested = true
				st.CorrectionRejectReason = ""
			}
			continue

		case action.StatusRejected:
			if a.Type == action.TypeRegister {
				st.Flags.RegistrationPending = false
			}
			continue
		}

		// Accepted from here on.
		if len(a.Declaration) > 0 {
			st.Declaration = validate.Merge(st.Declaration, a.Declaration)
		}

		switch a.Type {
		case action.TypeCreate:
			st.Status = StatusCreated

		case action.TypeDeclare:
			st.Status = StatusDeclared

		case action.TypeValidate:
			st.Status = StatusValidated

		case action.TypeRegister:
			st.Status = StatusRegistered
			st.Flags.RegistrationPending = false
			if n, ok := a.Annotation["registrationNumber"].(string); ok {
				st.RegistrationNumber = n
			}

		case action.TypeReject:
			st.Status = StatusRejected

		case action.TypeArchive:
			st.Status = StatusArchived

		case action.TypeAssign:
			st.AssignedTo = a.CreatedBy

		case action.TypeUnassign:
			st.AssignedTo = ""

		case action.TypeApproveCorrection:
			// Approval makes the corrected fields effective: the original
			// request's declaration merges now, and the record keeps its
			// pre-correction status (it was never demoted).
			if orig, ok := requested[a.OriginalActionID]; ok {
				if len(orig.Declaration) > 0 {
					st.Declaration = validate.Merge(st.Declaration, orig.Declaration)
				}
			}
			st.Flags.CorrectionRequested = false

		case action.TypeRejectCorrection:
			st.Flags.CorrectionRequested = false
			if reason, ok := a.Annotation["reason"].(string); ok {
				st.CorrectionRejectReason = reason
			}
		}
	}

	return st
}

// PendingCorrection returns the correction request that is still awaiting
// resolution, or false if none is pending. At most one correction may be
// pending per record; this scans for the invariant's subject.
func PendingCorrection(ev action.Event) (action.Action, bool) {
	return pendingOfType(ev, action.TypeRequestCorrection)
}

// PendingRegistration returns the REGISTER action still awaiting external
// confirmation, or false if none is pending.
func PendingRegistration(ev action.Event) (action.Action, bool) {
	return pendingOfType(ev, action.TypeRegister)
}

func pendingOfType(ev action.Event, t action.Type) (action.Action, bool) {
	for _, a := range ev.Actions {
		if a.Type != t || a.Status != action.StatusRequested {
			continue
		}
		if _, resolved := ev.ResolutionOf(a.ID); !resolved {
			return a, true
		}
	}
	return action.Action{}, false
}

// TimelineEntry is one item of a record's audit trail.
type TimelineEntry struct {
	Sequence  int64         `json:"sequence"`
	Type      action.Type   `json:"type"`
	Status    action.Status `json:"status"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

// Timeline projects the record's log into audit-trail entries, one per
// action, in log order.
func Timeline(ev action.Event) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(ev.Actions))
	for _, a := range ev.Actions {
		out = append(out, TimelineEntry{
			Sequence:  a.Sequence,
			Type:      a.Type,
			Status:    a.Status,
			CreatedBy: a.CreatedBy,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
