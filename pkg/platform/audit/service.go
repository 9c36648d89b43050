package audit

import (
	"context"
	"log/slog"
	"time"

	"verimed/pkg/requestcontext"
)

// Recorder captures structured audit events. Append failures are logged and
// swallowed: an audit outage must never fail the reveal, spawn, or purge it
// records.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder builds a Recorder. A nil store disables recording.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record fills in category, timestamp, and request correlation, then appends.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.store == nil {
		return
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := r.store.Append(ctx, event); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"action", string(event.Action),
			"error", err.Error(),
		)
	}
}
