package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"verimed/pkg/platform/audit"
	txcontext "verimed/pkg/platform/tx"
)

// Store persists audit events in PostgreSQL, append-only. It joins a
// context-carried transaction when one is present so purge events written
// during the patient cascade share its atomicity.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (id, category, occurred_at, patient_id, actor, action, field, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(),
		string(event.Category),
		event.Timestamp,
		event.PatientID,
		event.Actor,
		string(event.Action),
		event.Field,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT category, occurred_at, patient_id, actor, action, field, reason, request_id
		FROM audit_events
		WHERE patient_id = $1
		ORDER BY occurred_at ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var category, action string
		if err := rows.Scan(&category, &e.Timestamp, &e.PatientID, &e.Actor, &action, &e.Field, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) DeleteByPatient(ctx context.Context, patientID string) error {
	if _, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM audit_events WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("delete audit events: %w", err)
	}
	return nil
}
