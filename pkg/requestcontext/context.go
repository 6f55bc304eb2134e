// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, "nurse-7", "ICU")
package requestcontext

import (
	"context"
	"time"

	id "qsync/pkg/domain"
)

type (
	actorKey       struct{}
	actorUnitKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActor       = actorKey{}
	ContextKeyActorUnit   = actorUnitKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Actor returns the acting user, defaulting to the system user.
func Actor(ctx context.Context) id.UserID {
	if u, ok := ctx.Value(ContextKeyActor).(id.UserID); ok && u != "" {
		return u
	}
	return id.SystemUser
}

// ActorUnit returns the organizational unit of the acting user, if known.
func ActorUnit(ctx context.Context) string {
	if unit, ok := ctx.Value(ContextKeyActorUnit).(string); ok {
		return unit
	}
	return ""
}

// WithActor injects the acting user and unit.
func WithActor(ctx context.Context, user id.UserID, unit string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActor, user)
	return context.WithValue(ctx, ContextKeyActorUnit, unit)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
