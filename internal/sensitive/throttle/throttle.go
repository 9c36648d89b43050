// Package throttle counts failed reveal attempts per requester and locks the
// requester out once the failure budget is spent. Counters expire on their
// own after the lock window, so a locked requester recovers without operator
// action.
package throttle

import (
	"context"
	"time"
)

// Store persists failure counters with a TTL.
type Store interface {
	// Hit increments the failure counter for key, starting the expiry window
	// on the first hit, and returns the updated count.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
	// Count reads the current failure count for key. Expired or absent keys
	// count as zero.
	Count(ctx context.Context, key string) (int, error)
	// Reset clears the counter, typically after a successful reveal.
	Reset(ctx context.Context, key string) error
}
