package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "qsync/pkg/platform/audit"
	txcontext "qsync/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Appends join the
// caller's transaction when one is bound to the context, so an audit row
// commits or rolls back with the mutation it records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (occurred_at, actor, action, kind, record_id, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		event.Timestamp,
		event.Actor,
		event.Action,
		event.Kind,
		event.RecordID,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByRecord(ctx context.Context, recordID string) ([]audit.Event, error) {
	query := `
		SELECT occurred_at, actor, action, kind, record_id, reason, request_id
		FROM audit_events
		WHERE record_id = $1
		ORDER BY occurred_at, id
	`
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.Timestamp, &e.Actor, &e.Action, &e.Kind, &e.RecordID, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
