// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services consume them without
// importing net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	requesterIDKey   struct{}
	requesterRoleKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyRequesterID   = requesterIDKey{}
	ContextKeyRequesterRole = requesterRoleKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// RequesterID retrieves the authenticated user ID from the context.
func RequesterID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequesterID).(string); ok {
		return v
	}
	return ""
}

// WithRequesterID injects an authenticated user ID into the context.
func WithRequesterID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequesterID, userID)
}

// RequesterRole retrieves the authenticated role from the context.
func RequesterRole(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequesterRole).(string); ok {
		return v
	}
	return ""
}

// WithRequesterRole injects an authenticated role into the context.
func WithRequesterRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyRequesterRole, role)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time, falling back to time.Now for
// non-HTTP contexts such as tests and CLI commands.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
