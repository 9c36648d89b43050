// Package postgres persists the patient read models. Sensitive attributes
// are stored as envelope/encrypted column pairs; plaintext never reaches
// this layer.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"verimed/internal/patient"
	"verimed/internal/sensitive"
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

// fieldColumn maps protected attribute names to their envelope column prefix
// and owning table.
var fieldColumns = map[domain.FieldName]struct {
	table  string
	column string
}{
	domain.FieldBirthDate:    {"patients", "birth_date"},
	domain.FieldNationalID:   {"patients", "national_id"},
	domain.FieldPhone:        {"patients", "phone"},
	domain.FieldEmail:        {"patients", "email"},
	domain.FieldAddress:      {"patients", "address"},
	domain.FieldPolicyNumber: {"insurances", "policy_number"},
	domain.FieldGroupNumber:  {"insurances", "group_number"},
	domain.FieldSubscriberID: {"insurances", "subscriber_id"},
}

func (s *Store) CreatePatient(ctx context.Context, p *patient.Patient) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO patients (id, owner_user_id, display_name,
			birth_date_envelope, birth_date_encrypted,
			national_id_envelope, national_id_encrypted,
			phone_envelope, phone_encrypted,
			email_envelope, email_encrypted,
			address_envelope, address_encrypted,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID.String(), p.OwnerUserID, p.DisplayName,
		p.BirthDate.Envelope, p.BirthDate.Encrypted,
		p.NationalID.Envelope, p.NationalID.Encrypted,
		p.Phone.Envelope, p.Phone.Encrypted,
		p.Email.Envelope, p.Email.Encrypted,
		p.Address.Envelope, p.Address.Encrypted,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *Store) GetPatient(ctx context.Context, id domain.PatientID) (*patient.Patient, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, owner_user_id, display_name,
			birth_date_envelope, birth_date_encrypted,
			national_id_envelope, national_id_encrypted,
			phone_envelope, phone_encrypted,
			email_envelope, email_encrypted,
			address_envelope, address_encrypted,
			created_at
		FROM patients WHERE id = $1`, id.String())

	var p patient.Patient
	var rawID string
	err := row.Scan(&rawID, &p.OwnerUserID, &p.DisplayName,
		&p.BirthDate.Envelope, &p.BirthDate.Encrypted,
		&p.NationalID.Envelope, &p.NationalID.Encrypted,
		&p.Phone.Envelope, &p.Phone.Encrypted,
		&p.Email.Envelope, &p.Email.Encrypted,
		&p.Address.Envelope, &p.Address.Encrypted,
		&p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse patient id: %w", err)
	}
	p.ID = domain.PatientID(parsed)
	return &p, nil
}

func (s *Store) GetField(ctx context.Context, patientID domain.PatientID, name domain.FieldName) (sensitive.Field, error) {
	loc, ok := fieldColumns[name]
	if !ok {
		return sensitive.Field{}, sentinel.ErrNotFound
	}

	var query string
	if loc.table == "patients" {
		query = fmt.Sprintf(`SELECT %s_envelope, %s_encrypted FROM patients WHERE id = $1`,
			loc.column, loc.column)
	} else {
		query = fmt.Sprintf(`SELECT %s_envelope, %s_encrypted FROM insurances
			WHERE patient_id = $1 ORDER BY rank ASC LIMIT 1`, loc.column, loc.column)
	}

	var field sensitive.Field
	err := s.execer(ctx).QueryRowContext(ctx, query, patientID.String()).
		Scan(&field.Envelope, &field.Encrypted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sensitive.Field{}, sentinel.ErrNotFound
		}
		return sensitive.Field{}, fmt.Errorf("get field %s: %w", name, err)
	}
	return field, nil
}

func (s *Store) PutField(ctx context.Context, patientID domain.PatientID, name domain.FieldName, field sensitive.Field) error {
	loc, ok := fieldColumns[name]
	if !ok {
		return sentinel.ErrNotFound
	}

	var query string
	if loc.table == "patients" {
		query = fmt.Sprintf(`UPDATE patients SET %s_envelope = $2, %s_encrypted = $3 WHERE id = $1`,
			loc.column, loc.column)
	} else {
		query = fmt.Sprintf(`UPDATE insurances SET %s_envelope = $2, %s_encrypted = $3
			WHERE id = (SELECT id FROM insurances WHERE patient_id = $1 ORDER BY rank ASC LIMIT 1)`,
			loc.column, loc.column)
	}

	result, err := s.execer(ctx).ExecContext(ctx, query, patientID.String(), field.Envelope, field.Encrypted)
	if err != nil {
		return fmt.Errorf("put field %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put field %s: %w", name, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) AddInsurance(ctx context.Context, ins *patient.Insurance) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO insurances (id, patient_id, provider, rank,
			policy_number_envelope, policy_number_encrypted,
			group_number_envelope, group_number_encrypted,
			subscriber_id_envelope, subscriber_id_encrypted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ins.ID.String(), ins.PatientID.String(), ins.Provider, ins.Rank,
		ins.PolicyNumber.Envelope, ins.PolicyNumber.Encrypted,
		ins.GroupNumber.Envelope, ins.GroupNumber.Encrypted,
		ins.SubscriberID.Envelope, ins.SubscriberID.Encrypted,
	)
	if err != nil {
		return fmt.Errorf("add insurance: %w", err)
	}
	return nil
}

func (s *Store) ListInsurances(ctx context.Context, patientID domain.PatientID) ([]*patient.Insurance, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, patient_id, provider, rank,
			policy_number_envelope, policy_number_encrypted,
			group_number_envelope, group_number_encrypted,
			subscriber_id_envelope, subscriber_id_encrypted
		FROM insurances WHERE patient_id = $1 ORDER BY rank ASC`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list insurances: %w", err)
	}
	defer rows.Close()

	var out []*patient.Insurance
	for rows.Next() {
		var ins patient.Insurance
		var rawID, rawPatient string
		if err := rows.Scan(&rawID, &rawPatient, &ins.Provider, &ins.Rank,
			&ins.PolicyNumber.Envelope, &ins.PolicyNumber.Encrypted,
			&ins.GroupNumber.Envelope, &ins.GroupNumber.Encrypted,
			&ins.SubscriberID.Envelope, &ins.SubscriberID.Encrypted); err != nil {
			return nil, fmt.Errorf("scan insurance: %w", err)
		}
		parsedID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse insurance id: %w", err)
		}
		parsedPatient, err := uuid.Parse(rawPatient)
		if err != nil {
			return nil, fmt.Errorf("parse patient id: %w", err)
		}
		ins.ID = domain.InsuranceID(parsedID)
		ins.PatientID = domain.PatientID(parsedPatient)
		out = append(out, &ins)
	}
	return out, rows.Err()
}

func (s *Store) AddCoverageByCode(ctx context.Context, row *patient.CoverageByCode) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO coverage_by_code (id, patient_id, procedure_code, category, verified, verified_by, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.PatientID.String(), row.ProcedureCode, row.Category,
		row.Verified, row.VerifiedBy, row.Payload)
	if err != nil {
		return fmt.Errorf("add coverage row: %w", err)
	}
	return nil
}

func (s *Store) ListCoverageByCode(ctx context.Context, patientID domain.PatientID) ([]*patient.CoverageByCode, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, patient_id, procedure_code, category, verified, verified_by, payload
		FROM coverage_by_code WHERE patient_id = $1 ORDER BY procedure_code ASC`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list coverage rows: %w", err)
	}
	defer rows.Close()

	var out []*patient.CoverageByCode
	for rows.Next() {
		var row patient.CoverageByCode
		var rawPatient string
		if err := rows.Scan(&row.ID, &rawPatient, &row.ProcedureCode, &row.Category,
			&row.Verified, &row.VerifiedBy, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan coverage row: %w", err)
		}
		parsed, err := uuid.Parse(rawPatient)
		if err != nil {
			return nil, fmt.Errorf("parse patient id: %w", err)
		}
		row.PatientID = domain.PatientID(parsed)
		out = append(out, &row)
	}
	return out, rows.Err()
}

func (s *Store) AddCoverageDetail(ctx context.Context, detail *patient.CoverageDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	execer := s.execer(ctx)
	if _, err := execer.ExecContext(ctx, `
		INSERT INTO coverage_details (id, patient_id, plan_name)
		VALUES ($1, $2, $3)`,
		detail.ID, detail.PatientID.String(), detail.PlanName); err != nil {
		return fmt.Errorf("add coverage detail: %w", err)
	}
	for i := range detail.Rows {
		row := &detail.Rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CoverageDetailID = detail.ID
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO procedure_rows (id, coverage_detail_id, code, note)
			VALUES ($1, $2, $3, $4)`,
			row.ID, row.CoverageDetailID, row.Code, row.Note); err != nil {
			return fmt.Errorf("add procedure row: %w", err)
		}
	}
	return nil
}

func (s *Store) ListCoverageDetails(ctx context.Context, patientID domain.PatientID) ([]*patient.CoverageDetail, error) {
	execer := s.execer(ctx)
	rows, err := execer.QueryContext(ctx, `
		SELECT id, patient_id, plan_name FROM coverage_details WHERE patient_id = $1`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("list coverage details: %w", err)
	}
	defer rows.Close()

	var out []*patient.CoverageDetail
	for rows.Next() {
		var detail patient.CoverageDetail
		var rawPatient string
		if err := rows.Scan(&detail.ID, &rawPatient, &detail.PlanName); err != nil {
			return nil, fmt.Errorf("scan coverage detail: %w", err)
		}
		parsed, err := uuid.Parse(rawPatient)
		if err != nil {
			return nil, fmt.Errorf("parse patient id: %w", err)
		}
		detail.PatientID = domain.PatientID(parsed)
		out = append(out, &detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, detail := range out {
		procRows, err := execer.QueryContext(ctx, `
			SELECT id, coverage_detail_id, code, note FROM procedure_rows
			WHERE coverage_detail_id = $1`, detail.ID)
		if err != nil {
			return nil, fmt.Errorf("list procedure rows: %w", err)
		}
		for procRows.Next() {
			var row patient.ProcedureRow
			if err := procRows.Scan(&row.ID, &row.CoverageDetailID, &row.Code, &row.Note); err != nil {
				procRows.Close()
				return nil, fmt.Errorf("scan procedure row: %w", err)
			}
			detail.Rows = append(detail.Rows, row)
		}
		if err := procRows.Err(); err != nil {
			procRows.Close()
			return nil, err
		}
		procRows.Close()
	}
	return out, nil
}

func (s *Store) AddCallHistory(ctx context.Context, row *patient.CallHistory) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO call_history (id, patient_id, occurred_at, summary)
		VALUES ($1, $2, $3, $4)`,
		row.ID, row.PatientID.String(), row.OccurredAt, row.Summary)
	if err != nil {
		return fmt.Errorf("add call history: %w", err)
	}
	return nil
}

func (s *Store) AddTreatment(ctx context.Context, row *patient.Treatment) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO treatments (id, patient_id, name) VALUES ($1, $2, $3)`,
		row.ID, row.PatientID.String(), row.Name)
	if err != nil {
		return fmt.Errorf("add treatment: %w", err)
	}
	return nil
}

func (s *Store) AddAppointment(ctx context.Context, row *patient.Appointment) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO appointments (id, patient_id, scheduled_at) VALUES ($1, $2, $3)`,
		row.ID, row.PatientID.String(), row.ScheduledAt)
	if err != nil {
		return fmt.Errorf("add appointment: %w", err)
	}
	return nil
}

func (s *Store) AddPostalAddress(ctx context.Context, row *patient.PostalAddress) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO postal_addresses (id, patient_id, line) VALUES ($1, $2, $3)`,
		row.ID, row.PatientID.String(), row.Line)
	if err != nil {
		return fmt.Errorf("add postal address: %w", err)
	}
	return nil
}

func (s *Store) AddContactPoint(ctx context.Context, row *patient.ContactPoint) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO contact_points (id, patient_id, kind, value) VALUES ($1, $2, $3, $4)`,
		row.ID, row.PatientID.String(), row.Kind, row.Value)
	if err != nil {
		return fmt.Errorf("add contact point: %w", err)
	}
	return nil
}

func (s *Store) CountScopedRows(ctx context.Context, patientID domain.PatientID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM patients WHERE id = $1) +
			(SELECT count(*) FROM insurances WHERE patient_id = $1) +
			(SELECT count(*) FROM coverage_by_code WHERE patient_id = $1) +
			(SELECT count(*) FROM coverage_details WHERE patient_id = $1) +
			(SELECT count(*) FROM procedure_rows WHERE coverage_detail_id IN
				(SELECT id FROM coverage_details WHERE patient_id = $1)) +
			(SELECT count(*) FROM call_history WHERE patient_id = $1) +
			(SELECT count(*) FROM treatments WHERE patient_id = $1) +
			(SELECT count(*) FROM appointments WHERE patient_id = $1) +
			(SELECT count(*) FROM postal_addresses WHERE patient_id = $1) +
			(SELECT count(*) FROM contact_points WHERE patient_id = $1)`,
		patientID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count scoped rows: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteCoverageDetails(ctx context.Context, patientID domain.PatientID) error {
	execer := s.execer(ctx)
	if _, err := execer.ExecContext(ctx, `
		DELETE FROM procedure_rows WHERE coverage_detail_id IN
			(SELECT id FROM coverage_details WHERE patient_id = $1)`, patientID.String()); err != nil {
		return fmt.Errorf("delete procedure rows: %w", err)
	}
	if _, err := execer.ExecContext(ctx,
		`DELETE FROM coverage_details WHERE patient_id = $1`, patientID.String()); err != nil {
		return fmt.Errorf("delete coverage details: %w", err)
	}
	return nil
}

func (s *Store) DeleteScopedCollections(ctx context.Context, patientID domain.PatientID) error {
	execer := s.execer(ctx)
	for _, table := range []string{
		"coverage_by_code", "call_history", "treatments",
		"appointments", "insurances", "postal_addresses", "contact_points",
	} {
		if _, err := execer.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE patient_id = $1`, patientID.String()); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) DeletePatient(ctx context.Context, patientID domain.PatientID) error {
	if _, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM patients WHERE id = $1`, patientID.String()); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}
