// Package query defines optional interfaces for extending Store
// implementations with dashboard-specific query capabilities.
//
// Following Rob Pike's principle: "The bigger the interface, the weaker
// the abstraction." Each interface has a single method, allowing stores to
// implement only what they need.
//
// These interfaces are OPTIONAL. Dashboard code should type-assert to
// check if a store implements the desired interface:
//
//	if counter, ok := store.(query.EventCounter); ok {
//	    total, err := counter.CountEvents(ctx, action.EventBirth)
//	    // use total for pagination
//	}
//
// Stores that don't implement these interfaces can still be used with
// dashboards - the dashboard falls back to loading records directly.
package query

import (
	"context"

	"github.com/lirancohen/vitals/action"
)

// EventCounter enables efficient counting of records by event type.
// Implement this to support pagination totals without loading full logs.
type EventCounter interface {
	// CountEvents returns the number of records of the given type.
	// An empty type counts all records.
	CountEvents(ctx context.Context, eventType action.EventType) (int64, error)
}

// TrackingQuerier enables finding a record by its human-facing tracking
// ID.
type TrackingQuerier interface {
	// QueryByTracking returns the record ID for a tracking ID.
	// Returns an empty string if no record matches.
	QueryByTracking(ctx context.Context, trackingID string) (string, error)
}

// AssignmentQuerier enables finding the records currently assigned to a
// user. Assignment is derived from ASSIGN/UNASSIGN actions in each
// record's log.
type AssignmentQuerier interface {
	// QueryByAssignee returns record IDs currently assigned to the user.
	// Returns an empty slice if none are.
	QueryByAssignee(ctx context.Context, userID string) ([]string, error)
}
