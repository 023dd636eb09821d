// Package cache defines an optional, explicitly invalidated cache for
// resolved record states.
//
// The action log is the source of truth; a cached state is only ever a
// performance aid and must be invalidated on every append. There is no
// ambient module-level caching anywhere in Vitals - callers wire a Cache
// explicitly or get Noop.
package cache

import (
	"context"

	"github.com/lirancohen/vitals/project"
)

// Cache stores resolved states keyed by record ID.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached state for a record and whether one was
	// present.
	Get(ctx context.Context, eventID string) (project.State, bool, error)

	// Set stores the state for a record.
	Set(ctx context.Context, eventID string, st project.State) error

	// Invalidate drops the cached state for a record. Called on every
	// append, before the new state is observable.
	Invalidate(ctx context.Context, eventID string) error
}

// Noop is a Cache that stores nothing.
type Noop struct{}

func (Noop) Get(context.Context, string) (project.State, bool, error) { return project.State{}, false, nil }
func (Noop) Set(context.Context, string, project.State) error         { return nil }
func (Noop) Invalidate(context.Context, string) error                 { return nil }
