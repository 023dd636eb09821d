// Package service orchestrates record actions: scope authorization,
// duplicate fail-fast, schema validation, the confirmable action
// protocol, and the correction sub-workflow, in front of the action log
// store.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lirancohen/vitals/action"
	"github.com/lirancohen/vitals/cache"
	"github.com/lirancohen/vitals/confirm"
	"github.com/lirancohen/vitals/schema"
)

// Logger defines the logging interface for the service.
// Implementations should be safe for concurrent use.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}

// SchemaSource provides declaration schemas per event type. Implemented
// by schema.Client; the fetched configuration is treated as an immutable
// per-request value.
type SchemaSource interface {
	GetEventConfiguration(ctx context.Context, eventType action.EventType, token string) (schema.EventConfig, error)
}

// Config configures the Service.
type Config struct {
	// Store is the action log persistence layer.
	// Required.
	Store action.Store

	// Schemas resolves declaration schemas per event type.
	// Required.
	Schemas SchemaSource

	// Confirmer decides confirmable actions via the external
	// confirmation endpoint. Required.
	Confirmer confirm.Confirmer

	// TokenSecret verifies bearer tokens.
	// Required.
	TokenSecret []byte

	// Cache holds resolved states; invalidated on every append.
	// If nil, cache.Noop is used.
	Cache cache.Cache

	// Logger is the logging interface. If nil, a no-op logger is used.
	Logger Logger

	// Now supplies timestamps. If nil, time.Now is used.
	Now func() time.Time

	// NewID supplies action and record IDs. If nil, UUIDs are used.
	NewID func() string
}

// Validate checks that the configuration is valid.
// Returns an error if any required fields are missing.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("service: Store is required")
	}
	if c.Schemas == nil {
		return errors.New("service: Schemas is required")
	}
	if c.Confirmer == nil {
		return errors.New("service: Confirmer is required")
	}
	if len(c.TokenSecret) == 0 {
		return errors.New("service: TokenSecret is required")
	}
	return nil
}

// withDefaults returns a copy of the config with default values applied.
func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return cfg
}

// noopLogger is a Logger that discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
