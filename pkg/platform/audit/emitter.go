package audit

import (
	"context"
	"log/slog"

	"qsync/pkg/requestcontext"
)

// Publisher accepts audit events for persistence.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Emitter writes the structured audit log line and forwards the event to a
// publisher. Both the logger and the publisher are optional.
type Emitter struct {
	logger    *slog.Logger
	publisher Publisher
}

func NewEmitter(logger *slog.Logger, publisher Publisher) *Emitter {
	return &Emitter{logger: logger, publisher: publisher}
}

// Record returns the publisher error so transactional callers roll back with it.
func (e *Emitter) Record(ctx context.Context, event AuditEvent, kind, recordID, reason string) error {
	requestID := requestcontext.RequestID(ctx)
	actor := string(requestcontext.Actor(ctx))
	args := []any{
		"kind", kind,
		"record_id", recordID,
		"actor", actor,
		"event", string(event),
		"log_type", "audit",
	}
	if reason != "" {
		args = append(args, "reason", reason)
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, string(event), args...)
	}
	if e.publisher == nil {
		return nil
	}
	return e.publisher.Emit(ctx, Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     actor,
		Action:    string(event),
		Kind:      kind,
		RecordID:  recordID,
		Reason:    reason,
		RequestID: requestID,
	})
}

// RecordBlocked records a rejected mutation after its transaction rolled back.
// Failures are logged only.
func (e *Emitter) RecordBlocked(ctx context.Context, event AuditEvent, kind, recordID, reason string) {
	if err := e.Record(ctx, event, kind, recordID, reason); err != nil && e.logger != nil {
		e.logger.ErrorContext(ctx, "failed to record audit event", "event", string(event), "error", err)
	}
}
