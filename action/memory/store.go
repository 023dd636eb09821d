// Package memory provides an in-memory implementation of action.Store.
// This implementation is suitable for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/lirancohen/vitals/action"
)

// Store is a thread-safe in-memory implementation of action.Store.
// The zero value is ready for use.
type Store struct {
	mu     sync.RWMutex
	events map[string]*action.Event // eventID -> record
	ids    map[string]struct{}      // set of all action IDs for duplicate detection
}

// New creates a new in-memory action store.
func New() *Store {
	return &Store{
		events: make(map[string]*action.Event),
		ids:    make(map[string]struct{}),
	}
}

// initLocked initializes maps if nil (supports zero value).
// Caller must hold s.mu.
func (s *Store) initLocked() {
	if s.events == nil {
		s.events = make(map[string]*action.Event)
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
}

// CreateEvent persists a new record together with its initial actions in
// one atomic write. Returns action.ErrEventExists if the ID is already
// taken.
func (s *Store) CreateEvent(ctx context.Context, ev action.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()

	if _, exists := s.events[ev.ID]; exists {
		return action.ErrEventExists
	}

	stored := ev
	stored.Actions = append([]action.Action(nil), ev.Actions...)
	s.events[ev.ID] = &stored
	for _, a := range stored.Actions {
		s.ids[a.ID] = struct{}{}
	}
	return nil
}

// GetEvent loads a record with its full action log in log order.
func (s *Store) GetEvent(ctx context.Context, eventID string) (action.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return action.Event{}, &action.NotFoundError{EventID: eventID}
	}
	return copyEvent(ev), nil
}

// Append adds one action to the record's log with at-most-once semantics
// per transaction ID. lastSequence must match the current highest
// sequence or the append fails with action.ErrSequenceConflict.
func (s *Store) Append(ctx context.Context, eventID string, lastSequence int64, a action.Action) (action.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()

	ev, ok := s.events[eventID]
	if !ok {
		return action.Event{}, &action.NotFoundError{EventID: eventID}
	}

	// Idempotent retry: a known transaction ID returns the record
	// unchanged, no new action, no error. Checked before the sequence so
	// a retry that lost its first response never conflicts with itself.
	if _, dup := findTransaction(ev, a.TransactionID); dup {
		return copyEvent(ev), nil
	}

	if cur := int64(len(ev.Actions)); cur != lastSequence {
		return action.Event{}, &action.SequenceConflictError{EventID: eventID, Expected: lastSequence, Actual: cur}
	}

	if _, exists := s.ids[a.ID]; exists {
		return action.Event{}, action.ErrDuplicateAction
	}

	a.Sequence = lastSequence + 1
	ev.Actions = append(ev.Actions, a)
	s.ids[a.ID] = struct{}{}

	return copyEvent(ev), nil
}

// HasDuplicate reports whether an action with the given transaction ID
// already exists on the record.
func (s *Store) HasDuplicate(ctx context.Context, eventID, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return false, &action.NotFoundError{EventID: eventID}
	}
	_, dup := findTransaction(ev, transactionID)
	return dup, nil
}

// CountEvents returns the number of records of the given type; an empty
// type counts all records. Implements the optional query.EventCounter
// interface.
func (s *Store) CountEvents(ctx context.Context, eventType action.EventType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, ev := range s.events {
		if eventType == "" || ev.Type == eventType {
			count++
		}
	}
	return count, nil
}

// QueryByTracking returns the record ID for a tracking ID, or an empty
// string if no record matches. Implements the optional
// query.TrackingQuerier interface.
func (s *Store) QueryByTracking(ctx context.Context, trackingID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.TrackingID == trackingID {
			return ev.ID, nil
		}
	}
	return "", nil
}

// QueryByAssignee returns record IDs currently assigned to the user,
// derived from each record's latest accepted ASSIGN/UNASSIGN action.
// Implements the optional query.AssignmentQuerier interface.
func (s *Store) QueryByAssignee(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for _, ev := range s.events {
		assignee := ""
		for _, a := range ev.Actions {
			if a.Status != action.StatusAccepted {
				continue
			}
			switch a.Type {
			case action.TypeAssign:
				assignee = a.CreatedBy
			case action.TypeUnassign:
				assignee = ""
			}
		}
		if assignee == userID {
			ids = append(ids, ev.ID)
		}
	}
	return ids, nil
}

func findTransaction(ev *action.Event, transactionID string) (action.Action, bool) {
	for _, a := range ev.Actions {
		if a.TransactionID == transactionID {
			return a, true
		}
	}
	return action.Action{}, false
}

// copyEvent returns a deep-enough copy to prevent external modification
// of the stored log.
func copyEvent(ev *action.Event) action.Event {
	out := *ev
	out.Actions = make([]action.Action, len(ev.Actions))
	copy(out.Actions, ev.Actions)
	return out
}
