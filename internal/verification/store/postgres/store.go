// Package postgres persists the transaction log. The compare-and-set status
// update is pushed into the UPDATE's WHERE clause so the database arbitrates
// concurrent transitions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verimed/internal/verification"
	"verimed/pkg/domain"
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

const transactionColumns = `id, request_id, patient_id, patient_name, stage, status,
	start_time, end_time, eligibility_summary, benefits_summary, transcript,
	raw_provider_response, insurance_provider, insurance_rep, created_at, updated_at`

func (s *Store) Create(ctx context.Context, t *verification.Transaction) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO verification_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.ID.String(), t.RequestID, t.PatientID.String(), t.PatientName,
		string(t.Stage), string(t.Status), t.StartTime, t.EndTime,
		t.EligibilitySummary, t.BenefitsSummary, t.Transcript,
		t.RawProviderResponse, t.InsuranceProvider, t.InsuranceRep,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TransactionID) (*verification.Transaction, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM verification_transactions WHERE id = $1`, id.String())
	return scanTransaction(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*verification.Transaction, error) {
	var t verification.Transaction
	var id, patientID, stage, status string
	var startTime, endTime sql.NullTime
	err := row.Scan(&id, &t.RequestID, &patientID, &t.PatientName, &stage, &status,
		&startTime, &endTime, &t.EligibilitySummary, &t.BenefitsSummary,
		&t.Transcript, &t.RawProviderResponse, &t.InsuranceProvider,
		&t.InsuranceRep, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse transaction id: %w", err)
	}
	parsedPatient, err := uuid.Parse(patientID)
	if err != nil {
		return nil, fmt.Errorf("parse patient id: %w", err)
	}
	t.ID = domain.TransactionID(parsedID)
	t.PatientID = domain.PatientID(parsedPatient)
	t.Stage = domain.StageType(stage)
	t.Status = domain.TransactionStatus(status)
	if startTime.Valid {
		t.StartTime = &startTime.Time
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	return &t, nil
}

func (s *Store) ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*verification.Transaction, error) {
	// NULLS LAST keeps unstarted attempts at the end for status derivation.
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM verification_transactions
		WHERE patient_id = $1
		ORDER BY start_time ASC NULLS LAST, created_at ASC`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*verification.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id domain.TransactionID, expected, next domain.TransactionStatus, fields verification.ResultFields) (*verification.Transaction, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE verification_transactions SET
			status = $3,
			start_time = COALESCE($4::timestamptz, start_time),
			end_time = COALESCE($5::timestamptz, end_time),
			eligibility_summary = COALESCE($6::text, eligibility_summary),
			benefits_summary = COALESCE($7::text, benefits_summary),
			transcript = COALESCE($8::text, transcript),
			raw_provider_response = COALESCE($9::text, raw_provider_response),
			insurance_provider = COALESCE($10::text, insurance_provider),
			insurance_rep = COALESCE($11::text, insurance_rep),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		id.String(), string(expected), string(next),
		fields.StartTime, fields.EndTime,
		fields.EligibilitySummary, fields.BenefitsSummary, fields.Transcript,
		fields.RawProviderResponse, fields.InsuranceProvider, fields.InsuranceRep,
	)
	updated, err := scanTransaction(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	// No row matched: distinguish a missing transaction from a lost race.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, sentinel.ErrStaleStatus
}

func (s *Store) AddCommunication(ctx context.Context, m *verification.CallCommunication) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO call_communications (id, transaction_id, occurred_at, speaker, body, kind)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TransactionID.String(), m.Timestamp, string(m.Speaker), m.Body, m.Kind)
	if err != nil {
		return fmt.Errorf("add communication: %w", err)
	}
	return nil
}

func (s *Store) ListCommunications(ctx context.Context, transactionID domain.TransactionID) ([]*verification.CallCommunication, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, transaction_id, occurred_at, speaker, body, kind
		FROM call_communications
		WHERE transaction_id = $1
		ORDER BY occurred_at ASC`, transactionID.String())
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var out []*verification.CallCommunication
	for rows.Next() {
		var m verification.CallCommunication
		var txID, speaker string
		if err := rows.Scan(&m.ID, &txID, &m.Timestamp, &speaker, &m.Body, &m.Kind); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		parsed, err := uuid.Parse(txID)
		if err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		m.TransactionID = domain.TransactionID(parsed)
		m.Speaker = domain.Speaker(speaker)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) AddTag(ctx context.Context, tag *verification.VerifiedItemTag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO verified_item_tags (id, transaction_id, item)
		VALUES ($1, $2, $3)`,
		tag.ID, tag.TransactionID.String(), tag.Item)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context, transactionID domain.TransactionID) ([]*verification.VerifiedItemTag, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, transaction_id, item FROM verified_item_tags
		WHERE transaction_id = $1`, transactionID.String())
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*verification.VerifiedItemTag
	for rows.Next() {
		var tag verification.VerifiedItemTag
		var txID string
		if err := rows.Scan(&tag.ID, &txID, &tag.Item); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		parsed, err := uuid.Parse(txID)
		if err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		tag.TransactionID = domain.TransactionID(parsed)
		out = append(out, &tag)
	}
	return out, rows.Err()
}

func (s *Store) GetStatusRecord(ctx context.Context, patientID domain.PatientID) (*verification.StatusRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT patient_id, fetch_pms, document_analysis, api_verification, call_center, save_to_pms, updated_at
		FROM verification_status_records WHERE patient_id = $1`, patientID.String())

	var record verification.StatusRecord
	var id, fetch, doc, api, call, save string
	err := row.Scan(&id, &fetch, &doc, &api, &call, &save, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get status record: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse patient id: %w", err)
	}
	record.PatientID = domain.PatientID(parsed)
	record.FetchPMS = domain.StageState(fetch)
	record.DocumentAnalysis = domain.StageState(doc)
	record.APIVerification = domain.StageState(api)
	record.CallCenter = domain.StageState(call)
	record.SaveToPMS = domain.StageState(save)
	return &record, nil
}

func (s *Store) PutStatusRecord(ctx context.Context, record *verification.StatusRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO verification_status_records
			(patient_id, fetch_pms, document_analysis, api_verification, call_center, save_to_pms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (patient_id) DO UPDATE SET
			fetch_pms = EXCLUDED.fetch_pms,
			document_analysis = EXCLUDED.document_analysis,
			api_verification = EXCLUDED.api_verification,
			call_center = EXCLUDED.call_center,
			save_to_pms = EXCLUDED.save_to_pms,
			updated_at = now()`,
		record.PatientID.String(), string(record.FetchPMS), string(record.DocumentAnalysis),
		string(record.APIVerification), string(record.CallCenter), string(record.SaveToPMS))
	if err != nil {
		return fmt.Errorf("put status record: %w", err)
	}
	return nil
}

func (s *Store) DeleteByPatient(ctx context.Context, patientID domain.PatientID) error {
	execer := s.execer(ctx)
	// Children first: communications and tags block their transactions.
	if _, err := execer.ExecContext(ctx, `
		DELETE FROM call_communications WHERE transaction_id IN
			(SELECT id FROM verification_transactions WHERE patient_id = $1)`, patientID.String()); err != nil {
		return fmt.Errorf("delete communications: %w", err)
	}
	if _, err := execer.ExecContext(ctx, `
		DELETE FROM verified_item_tags WHERE transaction_id IN
			(SELECT id FROM verification_transactions WHERE patient_id = $1)`, patientID.String()); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM verification_transactions WHERE patient_id = $1`, patientID.String()); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM verification_status_records WHERE patient_id = $1`, patientID.String()); err != nil {
		return fmt.Errorf("delete status record: %w", err)
	}
	return nil
}
