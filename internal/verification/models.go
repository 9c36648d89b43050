// Package verification owns the append-only log of verification attempts
// ("transactions") and the per-patient editable status record. Transactions
// are created by collaborators or spawned by the pipeline, mutated via
// compare-and-set status updates, and removed only by the patient cascade.
package verification

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"verimed/internal/verification/status"
	"verimed/pkg/domain"
)

// Transaction is one verification attempt for a patient. The struct is defined
// in the status package so the derivation engine can reference it without an
// import cycle; the alias keeps type identity here.
type Transaction = status.Transaction

// CallCommunication is one message in a transaction's transcript.
type CallCommunication struct {
	ID            string
	TransactionID domain.TransactionID
	Timestamp     time.Time
	Speaker       domain.Speaker
	Body          string
	Kind          string
}

// VerifiedItemTag marks a logical data item a transaction confirmed.
type VerifiedItemTag struct {
	ID            string
	TransactionID domain.TransactionID
	Item          string
}

// ResultFields carries optional mutations applied alongside a status update.
// Nil members leave the stored value untouched.
type ResultFields struct {
	StartTime           *time.Time
	EndTime             *time.Time
	EligibilitySummary  *string
	BenefitsSummary     *string
	Transcript          *string
	RawProviderResponse *string
	InsuranceProvider   *string
	InsuranceRep        *string
}

// StatusRecord is the separately stored, manually editable verification
// status. It is authoritative when the source system is not trusted for live
// transaction history (data mode off); otherwise derivation governs and this
// record is bypassed.
type StatusRecord struct {
	PatientID        domain.PatientID
	FetchPMS         domain.StageState
	DocumentAnalysis domain.StageState
	APIVerification  domain.StageState
	CallCenter       domain.StageState
	SaveToPMS        domain.StageState
	UpdatedAt        time.Time
}

// NewRequestID builds the human-readable, time-derived request identifier
// shown to operators, e.g. VR-20240131-154502-9f3a.
func NewRequestID(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return "VR-" + now.UTC().Format("20060102-150405") + "-" + hex.EncodeToString(suffix)
}
