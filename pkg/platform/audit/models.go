package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// plaintext reveals and patient purges. These require long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// denied reveals, decryption authentication failures, reveal lockouts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging the pipeline:
	// stage spawns and replication failures.
	CategoryOperations EventCategory = "operations"
)

// Action names an auditable occurrence in the core.
type Action string

const (
	ActionFieldRevealed      Action = "field_revealed"
	ActionRevealDenied       Action = "reveal_denied"
	ActionRevealLocked       Action = "reveal_locked"
	ActionDecryptFailed      Action = "decrypt_failed"
	ActionCallStageSpawned   Action = "call_stage_spawned"
	ActionReplicationFailed  Action = "replication_failed"
	ActionPatientPurged      Action = "patient_purged"
	ActionTransactionCreated Action = "transaction_created"
)

// actionCategories is the source of truth for categorizing events.
var actionCategories = map[Action]EventCategory{
	ActionFieldRevealed:      CategoryCompliance,
	ActionRevealDenied:       CategorySecurity,
	ActionRevealLocked:       CategorySecurity,
	ActionDecryptFailed:      CategorySecurity,
	ActionCallStageSpawned:   CategoryOperations,
	ActionReplicationFailed:  CategoryOperations,
	ActionPatientPurged:      CategoryCompliance,
	ActionTransactionCreated: CategoryOperations,
}

// Category derives the category for an action, defaulting to operations.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. It records which field
// was revealed or which patient was purged, never any plaintext value.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	PatientID string
	// Actor is the authenticated requester who performed the action, when the
	// action was user-initiated. Pipeline events leave it empty.
	Actor     string
	Action    Action
	Field     string
	Reason    string
	RequestID string
}

// Store persists audit events append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPatient(ctx context.Context, patientID string) ([]Event, error)
	// DeleteByPatient removes a patient's trail during cascade deletion.
	DeleteByPatient(ctx context.Context, patientID string) error
}
