// Package testutil provides request and context helpers for tests.
package testutil

import (
	"context"
	"net/http"
	"time"

	"verimed/pkg/requestcontext"
)

// WithRequester adds an authenticated requester to the request context,
// simulating what the auth middleware does.
func WithRequester(req *http.Request, userID, role string) *http.Request {
	ctx := requestcontext.WithRequesterID(req.Context(), userID)
	ctx = requestcontext.WithRequesterRole(ctx, role)
	return req.WithContext(ctx)
}

// Context builds a service-level context carrying a requester identity.
func Context(userID, role string) context.Context {
	ctx := requestcontext.WithRequesterID(context.Background(), userID)
	return requestcontext.WithRequesterRole(ctx, role)
}

// ContextAt pins the request clock, for tests asserting on timestamps.
func ContextAt(userID string, at time.Time) context.Context {
	ctx := requestcontext.WithRequesterID(context.Background(), userID)
	return requestcontext.WithTime(ctx, at)
}
