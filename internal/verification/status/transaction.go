package status

import (
	"time"

	"verimed/pkg/domain"
)

// Transaction is one verification attempt for a patient. It lives here so the
// derivation engine can fold over it without importing the verification
// package; verification re-exports it via a type alias.
type Transaction struct {
	ID        domain.TransactionID
	RequestID string
	PatientID domain.PatientID
	// PatientName is denormalized for spawned call-stage work items so call
	// center tooling never joins back to the patient record.
	PatientName string
	Stage       domain.StageType
	Status      domain.TransactionStatus
	// StartTime is nil until the attempt actually begins; unstarted attempts
	// sort after everything else during status derivation.
	StartTime *time.Time
	EndTime   *time.Time

	// Result fields are opaque to this core. Eligibility and OCR integrations
	// fill them; nothing here parses their contents.
	EligibilitySummary  string
	BenefitsSummary     string
	Transcript          string
	RawProviderResponse string

	InsuranceProvider string
	InsuranceRep      string

	CreatedAt time.Time
	UpdatedAt time.Time
}
