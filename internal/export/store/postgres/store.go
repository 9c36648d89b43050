// Package postgres persists interface snapshots. The tables carry no foreign
// key into the transaction log; the only relational enforcement is between a
// snapshot and its own children.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"verimed/internal/export"
	"verimed/pkg/platform/sentinel"
	txcontext "verimed/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

const snapshotColumns = `id, patient_id, transaction_id, request_id,
	patient_name, insurance_provider,
	policy_number_envelope, group_number_envelope, subscriber_id_envelope, phone_envelope,
	status, start_time, end_time, transcript, created_at`

func (s *Store) CreateSnapshot(ctx context.Context, snapshot *export.Snapshot) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO interface_snapshots (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		snapshot.ID, snapshot.PatientID, snapshot.TransactionID, snapshot.RequestID,
		snapshot.PatientName, snapshot.InsuranceProvider,
		snapshot.PolicyNumberEnvelope, snapshot.GroupNumberEnvelope,
		snapshot.SubscriberIDEnvelope, snapshot.PhoneEnvelope,
		snapshot.Status, snapshot.StartTime, snapshot.EndTime,
		snapshot.Transcript, snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(row interface{ Scan(dest ...any) error }) (*export.Snapshot, error) {
	var snapshot export.Snapshot
	err := row.Scan(
		&snapshot.ID, &snapshot.PatientID, &snapshot.TransactionID, &snapshot.RequestID,
		&snapshot.PatientName, &snapshot.InsuranceProvider,
		&snapshot.PolicyNumberEnvelope, &snapshot.GroupNumberEnvelope,
		&snapshot.SubscriberIDEnvelope, &snapshot.PhoneEnvelope,
		&snapshot.Status, &snapshot.StartTime, &snapshot.EndTime,
		&snapshot.Transcript, &snapshot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*export.Snapshot, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM interface_snapshots WHERE id = $1`, id)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]*export.Snapshot, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM interface_snapshots
		WHERE patient_id = $1 ORDER BY created_at ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*export.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snapshot)
	}
	return out, rows.Err()
}

func (s *Store) AddCoverageCode(ctx context.Context, row *export.CoverageCode) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO interface_coverage_codes (id, snapshot_id, procedure_code, category, verified, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID, row.SnapshotID, row.ProcedureCode, row.Category, row.Verified, row.Payload)
	if err != nil {
		return fmt.Errorf("add coverage code: %w", err)
	}
	return nil
}

func (s *Store) ListCoverageCodes(ctx context.Context, snapshotID string) ([]*export.CoverageCode, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, snapshot_id, procedure_code, category, verified, payload
		FROM interface_coverage_codes WHERE snapshot_id = $1 ORDER BY procedure_code ASC`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list coverage codes: %w", err)
	}
	defer rows.Close()

	var out []*export.CoverageCode
	for rows.Next() {
		var row export.CoverageCode
		if err := rows.Scan(&row.ID, &row.SnapshotID, &row.ProcedureCode,
			&row.Category, &row.Verified, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan coverage code: %w", err)
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

func (s *Store) AddMessage(ctx context.Context, message *export.Message) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO interface_messages (id, snapshot_id, occurred_at, speaker, body, kind)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.SnapshotID, message.Timestamp, message.Speaker, message.Body, message.Kind)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, snapshotID string) ([]*export.Message, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, snapshot_id, occurred_at, speaker, body, kind
		FROM interface_messages WHERE snapshot_id = $1 ORDER BY occurred_at ASC`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*export.Message
	for rows.Next() {
		var message export.Message
		if err := rows.Scan(&message.ID, &message.SnapshotID, &message.Timestamp,
			&message.Speaker, &message.Body, &message.Kind); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, &message)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	execer := s.execer(ctx)
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM interface_messages WHERE snapshot_id = $1`, id); err != nil {
		return fmt.Errorf("delete snapshot messages: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM interface_coverage_codes WHERE snapshot_id = $1`, id); err != nil {
		return fmt.Errorf("delete snapshot coverage codes: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM interface_snapshots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *Store) DeleteByPatient(ctx context.Context, patientID string) error {
	execer := s.execer(ctx)
	if _, err := execer.ExecContext(ctx, `
		DELETE FROM interface_messages WHERE snapshot_id IN
			(SELECT id FROM interface_snapshots WHERE patient_id = $1)`, patientID); err != nil {
		return fmt.Errorf("delete patient snapshot messages: %w", err)
	}
	if _, err := execer.ExecContext(ctx, `
		DELETE FROM interface_coverage_codes WHERE snapshot_id IN
			(SELECT id FROM interface_snapshots WHERE patient_id = $1)`, patientID); err != nil {
		return fmt.Errorf("delete patient snapshot coverage codes: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM interface_snapshots WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("delete patient snapshots: %w", err)
	}
	return nil
}

func (s *Store) CountByPatient(ctx context.Context, patientID string) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM interface_snapshots WHERE patient_id = $1) +
			(SELECT count(*) FROM interface_coverage_codes WHERE snapshot_id IN
				(SELECT id FROM interface_snapshots WHERE patient_id = $1)) +
			(SELECT count(*) FROM interface_messages WHERE snapshot_id IN
				(SELECT id FROM interface_snapshots WHERE patient_id = $1))`,
		patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snapshot rows: %w", err)
	}
	return count, nil
}
