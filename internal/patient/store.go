package patient

import (
	"context"

	"verimed/internal/sensitive"
	"verimed/pkg/domain"
)

// Store is the patient-side persistence contract. It doubles as the
// sensitive.FieldStore implementation: GetField/PutField resolve which entity
// (patient or primary insurance) owns a protected attribute.
type Store interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id domain.PatientID) (*Patient, error)

	GetField(ctx context.Context, patientID domain.PatientID, name domain.FieldName) (sensitive.Field, error)
	PutField(ctx context.Context, patientID domain.PatientID, name domain.FieldName, field sensitive.Field) error

	AddInsurance(ctx context.Context, ins *Insurance) error
	// ListInsurances returns the patient's insurances ordered by rank
	// ascending, so the first entry is the primary (or first available).
	ListInsurances(ctx context.Context, patientID domain.PatientID) ([]*Insurance, error)

	AddCoverageByCode(ctx context.Context, row *CoverageByCode) error
	ListCoverageByCode(ctx context.Context, patientID domain.PatientID) ([]*CoverageByCode, error)

	AddCoverageDetail(ctx context.Context, detail *CoverageDetail) error
	ListCoverageDetails(ctx context.Context, patientID domain.PatientID) ([]*CoverageDetail, error)

	AddCallHistory(ctx context.Context, row *CallHistory) error
	AddTreatment(ctx context.Context, row *Treatment) error
	AddAppointment(ctx context.Context, row *Appointment) error
	AddPostalAddress(ctx context.Context, row *PostalAddress) error
	AddContactPoint(ctx context.Context, row *ContactPoint) error

	// CountScopedRows reports how many rows across every patient-scoped
	// collection still reference the patient. Used to verify the cascade
	// guarantee of zero remaining references.
	CountScopedRows(ctx context.Context, patientID domain.PatientID) (int, error)

	// Cascade steps, called in order by the deletion coordinator:
	// coverage details drop their owned procedure rows first, then the
	// remaining patient-scoped collections, then the patient itself.
	DeleteCoverageDetails(ctx context.Context, patientID domain.PatientID) error
	DeleteScopedCollections(ctx context.Context, patientID domain.PatientID) error
	DeletePatient(ctx context.Context, patientID domain.PatientID) error
}
