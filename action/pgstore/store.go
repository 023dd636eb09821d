// Package pgstore provides a PostgreSQL-based action store implementation.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lirancohen/vitals/action"
)

// Store implements action.Store with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL action store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema is the DDL for the tables this store expects. Callers are
// responsible for applying it (or an equivalent migration) before use.
const Schema = `
CREATE TABLE IF NOT EXISTS vitals_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	tracking_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS vitals_actions (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES vitals_events (id),
	sequence BIGINT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	declaration JSONB,
	annotation JSONB,
	original_action_id TEXT,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT vitals_actions_event_sequence UNIQUE (event_id, sequence),
	CONSTRAINT vitals_actions_event_transaction UNIQUE (event_id, transaction_id)
);
CREATE INDEX IF NOT EXISTS idx_vitals_actions_event_id ON vitals_actions (event_id, sequence);
`

// CreateEvent persists a new record together with its initial actions in
// a single transaction, so a record is never visible without its opening
// action.
func (s *Store) CreateEvent(ctx context.Context, ev action.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO vitals_events (id, type, tracking_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.ID, string(ev.Type), nullable(ev.TrackingID), ev.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return action.ErrEventExists
		}
		return fmt.Errorf("insert event: %w", err)
	}

	for _, a := range ev.Actions {
		if err := insertAction(ctx, tx, ev.ID, a.Sequence, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetEvent loads a record with its full action log in log order.
func (s *Store) GetEvent(ctx context.Context, eventID string) (action.Event, error) {
	return s.getEvent(ctx, s.pool, eventID)
}

// Append adds one action to the record's log with at-most-once semantics
// per transaction ID. An advisory transaction lock on the record ID
// serializes concurrent appends to the same record; appends to different
// records proceed independently. lastSequence must match the current
// highest sequence or the append fails with action.ErrSequenceConflict.
func (s *Store) Append(ctx context.Context, eventID string, lastSequence int64, a action.Action) (action.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return action.Event{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Use advisory lock to prevent concurrent inserts for the same record.
	// This makes the duplicate-transaction and sequence checks below
	// race-free.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, eventID); err != nil {
		return action.Event{}, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vitals_events WHERE id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return action.Event{}, fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return action.Event{}, &action.NotFoundError{EventID: eventID}
	}

	// Idempotent retry: a known transaction ID returns the record
	// unchanged, no new action, no error. Checked before the sequence so
	// a retry that lost its first response never conflicts with itself.
	var dup bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vitals_actions
			WHERE event_id = $1 AND transaction_id = $2
		)
	`, eventID, a.TransactionID).Scan(&dup)
	if err != nil {
		return action.Event{}, fmt.Errorf("check transaction: %w", err)
	}

	if !dup {
		var cur int64
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(sequence), 0) FROM vitals_actions WHERE event_id = $1
		`, eventID).Scan(&cur)
		if err != nil {
			return action.Event{}, fmt.Errorf("check sequence: %w", err)
		}
		if cur != lastSequence {
			return action.Event{}, &action.SequenceConflictError{EventID: eventID, Expected: lastSequence, Actual: cur}
		}

		if err := insertAction(ctx, tx, eventID, lastSequence+1, a); err != nil {
			return action.Event{}, err
		}
	}

	ev, err := s.getEvent(ctx, tx, eventID)
	if err != nil {
		return action.Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return action.Event{}, fmt.Errorf("commit: %w", err)
	}
	return ev, nil
}

// HasDuplicate reports whether an action with the given transaction ID
// already exists on the record.
func (s *Store) HasDuplicate(ctx context.Context, eventID, transactionID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vitals_events WHERE id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return false, &action.NotFoundError{EventID: eventID}
	}

	var dup bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vitals_actions
			WHERE event_id = $1 AND transaction_id = $2
		)
	`, eventID, transactionID).Scan(&dup)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return dup, nil
}

// CountEvents returns the number of records of the given type.
// It implements the optional query.EventCounter interface; an empty type
// counts all records.
func (s *Store) CountEvents(ctx context.Context, eventType action.EventType) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM vitals_events
		WHERE $1 = '' OR type = $1
	`, string(eventType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// QueryByTracking returns the record ID for a tracking ID.
// It implements the optional query.TrackingQuerier interface.
func (s *Store) QueryByTracking(ctx context.Context, trackingID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM vitals_events WHERE tracking_id = $1
	`, trackingID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query tracking: %w", err)
	}
	return id, nil
}

// QueryByAssignee returns record IDs currently assigned to the user,
// derived from each record's latest accepted ASSIGN/UNASSIGN action.
// It implements the optional query.AssignmentQuerier interface.
func (s *Store) QueryByAssignee(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id
		FROM vitals_events e
		JOIN LATERAL (
			SELECT type, created_by
			FROM vitals_actions
			WHERE event_id = e.id
			  AND type IN ('ASSIGN', 'UNASSIGN')
			  AND status = 'Accepted'
			ORDER BY sequence DESC
			LIMIT 1
		) a ON TRUE
		WHERE a.type = 'ASSIGN' AND a.created_by = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query assignee: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return ids, nil
}

// insertAction writes one action row with an explicit sequence. The
// caller is responsible for serializing sequence assignment.
func insertAction(ctx context.Context, tx pgx.Tx, eventID string, sequence int64, a action.Action) error {
	declaration, err := marshalMap(a.Declaration)
	if err != nil {
		return fmt.Errorf("marshal declaration: %w", err)
	}
	annotation, err := marshalMap(a.Annotation)
	if err != nil {
		return fmt.Errorf("marshal annotation: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vitals_actions
			(id, event_id, sequence, type, status, transaction_id,
			 declaration, annotation, original_action_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, eventID, sequence, string(a.Type), string(a.Status), a.TransactionID,
		declaration, annotation, nullable(a.OriginalActionID), a.CreatedBy, a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return action.ErrDuplicateAction
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// querier is an interface satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getEvent is the internal implementation for loading a record.
func (s *Store) getEvent(ctx context.Context, q querier, eventID string) (action.Event, error) {
	var ev action.Event
	var eventType string
	var trackingID *string
	err := q.QueryRow(ctx, `
		SELECT id, type, tracking_id, created_at
		FROM vitals_events
		WHERE id = $1
	`, eventID).Scan(&ev.ID, &eventType, &trackingID, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return action.Event{}, &action.NotFoundError{EventID: eventID}
	}
	if err != nil {
		return action.Event{}, fmt.Errorf("query event: %w", err)
	}
	ev.Type = action.EventType(eventType)
	if trackingID != nil {
		ev.TrackingID = *trackingID
	}

	rows, err := q.Query(ctx, `
		SELECT id, sequence, type, status, transaction_id,
		       declaration, annotation, original_action_id, created_by, created_at
		FROM vitals_actions
		WHERE event_id = $1
		ORDER BY sequence ASC
	`, eventID)
	if err != nil {
		return action.Event{}, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a action.Action
		var actionType, status string
		var declaration, annotation []byte
		var originalActionID *string
		if err := rows.Scan(&a.ID, &a.Sequence, &actionType, &status, &a.TransactionID,
			&declaration, &annotation, &originalActionID, &a.CreatedBy, &a.CreatedAt); err != nil {
			return action.Event{}, fmt.Errorf("scan action: %w", err)
		}
		a.Type = action.Type(actionType)
		a.Status = action.Status(status)
		if originalActionID != nil {
			a.OriginalActionID = *originalActionID
		}
		if a.Declaration, err = unmarshalMap(declaration); err != nil {
			return action.Event{}, fmt.Errorf("unmarshal declaration: %w", err)
		}
		if a.Annotation, err = unmarshalMap(annotation); err != nil {
			return action.Event{}, fmt.Errorf("unmarshal annotation: %w", err)
		}
		ev.Actions = append(ev.Actions, a)
	}
	if err := rows.Err(); err != nil {
		return action.Event{}, fmt.Errorf("iterate actions: %w", err)
	}

	return ev, nil
}

// marshalMap encodes a payload map as JSONB input, preserving NULL for
// empty payloads.
func marshalMap[M ~map[string]any](m M) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKeyError checks if the error is a PostgreSQL duplicate key
// violation (error code 23505, unique_violation).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsString(msg, "23505") || containsString(msg, "duplicate key")
}

func containsString(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
