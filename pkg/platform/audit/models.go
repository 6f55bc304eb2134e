package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	// Actor is the acting user, "system" when none was resolved.
	Actor    string
	Action   string
	Kind     string
	RecordID string
	// Reason carries the lock reason for blocked deletes or the rejection reason
	// for status transitions.
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventRecordCreated      AuditEvent = "record_created"
	EventRecordUpdated      AuditEvent = "record_updated"
	EventRecordDeleted      AuditEvent = "record_deleted"
	EventStatusTransitioned AuditEvent = "status_transitioned"
	EventDeleteBlocked      AuditEvent = "delete_blocked"
	EventUpdateBlocked      AuditEvent = "update_blocked"
)

// Store persists audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
}
