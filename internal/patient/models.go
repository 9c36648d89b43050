// Package patient holds the thin read models the verification core touches:
// the patient record with its protected attributes, insurance records with
// encrypted identifiers, coverage rows, and the patient-scoped collections
// the cascade must clear. Full CRUD on these lives outside the core.
package patient

import (
	"time"

	"verimed/internal/sensitive"
	"verimed/pkg/domain"
)

// Patient is the owning record for everything the cascade removes.
type Patient struct {
	ID domain.PatientID
	// OwnerUserID is the account allowed to reveal this patient's fields
	// without an elevated role.
	OwnerUserID string
	DisplayName string

	BirthDate  sensitive.Field
	NationalID sensitive.Field
	Phone      sensitive.Field
	Email      sensitive.Field
	Address    sensitive.Field

	CreatedAt time.Time
}

// Insurance carries the encrypted policy identifiers replicated (still
// encrypted) into interface snapshots. Rank 1 is the primary insurance.
type Insurance struct {
	ID        domain.InsuranceID
	PatientID domain.PatientID
	Provider  string
	Rank      int

	PolicyNumber sensitive.Field
	GroupNumber  sensitive.Field
	SubscriberID sensitive.Field
}

// CoverageByCode is one per-procedure coverage row for a patient.
type CoverageByCode struct {
	ID            string
	PatientID     domain.PatientID
	ProcedureCode string
	Category      string
	Verified      bool
	// VerifiedBy names the source that confirmed the row; the automated
	// verification source marks rows as verified during replication.
	VerifiedBy string
	// Payload is the opaque coverage blob from the eligibility integration.
	Payload string
}

// CoverageDetail groups procedure rows under one plan-level record.
type CoverageDetail struct {
	ID        string
	PatientID domain.PatientID
	PlanName  string
	Rows      []ProcedureRow
}

// ProcedureRow is one procedure entry owned by a coverage detail.
type ProcedureRow struct {
	ID               string
	CoverageDetailID string
	Code             string
	Note             string
}

// CallHistory is one past call record for a patient.
type CallHistory struct {
	ID         string
	PatientID  domain.PatientID
	OccurredAt time.Time
	Summary    string
}

// Treatment, Appointment, PostalAddress, and ContactPoint exist here only so
// the cascade can prove it cleared every patient-scoped collection.
type Treatment struct {
	ID        string
	PatientID domain.PatientID
	Name      string
}

type Appointment struct {
	ID          string
	PatientID   domain.PatientID
	ScheduledAt time.Time
}

type PostalAddress struct {
	ID        string
	PatientID domain.PatientID
	Line      string
}

type ContactPoint struct {
	ID        string
	PatientID domain.PatientID
	Kind      string
	Value     string
}
