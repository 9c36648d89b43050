// Package domain holds the typed identifiers and enumerations shared across
// the verification core. Typed IDs prevent accidental cross-entity mixups at
// compile time; Parse constructors enforce validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "verimed/pkg/domain-errors"
)

// PatientID identifies a patient record.
type PatientID uuid.UUID

// TransactionID identifies one verification attempt in the transaction log.
type TransactionID uuid.UUID

// InsuranceID identifies an insurance record owned by a patient.
type InsuranceID uuid.UUID

func (id PatientID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id InsuranceID) String() string   { return uuid.UUID(id).String() }

func (id PatientID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewPatientID generates a fresh patient identifier.
func NewPatientID() PatientID { return PatientID(uuid.New()) }

// NewTransactionID generates a fresh transaction identifier.
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }

// NewInsuranceID generates a fresh insurance identifier.
func NewInsuranceID() InsuranceID { return InsuranceID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "identifier must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "identifier is not a valid UUID", err)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "identifier must not be the nil UUID")
	}
	return parsed, nil
}

// ParsePatientID constructs a PatientID from external input.
func ParsePatientID(raw string) (PatientID, error) {
	parsed, err := parseUUID(raw)
	return PatientID(parsed), err
}

// ParseTransactionID constructs a TransactionID from external input.
func ParseTransactionID(raw string) (TransactionID, error) {
	parsed, err := parseUUID(raw)
	return TransactionID(parsed), err
}

// ParseInsuranceID constructs an InsuranceID from external input.
func ParseInsuranceID(raw string) (InsuranceID, error) {
	parsed, err := parseUUID(raw)
	return InsuranceID(parsed), err
}
