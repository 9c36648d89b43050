package verification

import (
	"context"

	"verimed/pkg/domain"
)

// Store is the transaction log persistence contract.
//
// UpdateStatus is a compare-and-set: the update applies only when the stored
// status still equals expected, otherwise sentinel.ErrStaleStatus is
// returned. This is the double-spawn guard: of two concurrent updates racing
// the same transition, exactly one observes the expected status and wins.
type Store interface {
	Create(ctx context.Context, transaction *Transaction) error
	Get(ctx context.Context, id domain.TransactionID) (*Transaction, error)
	// ListByPatient returns the patient's transactions ordered by start time
	// ascending with unstarted (nil start) attempts last.
	ListByPatient(ctx context.Context, patientID domain.PatientID) ([]*Transaction, error)
	UpdateStatus(ctx context.Context, id domain.TransactionID, expected, next domain.TransactionStatus, fields ResultFields) (*Transaction, error)

	AddCommunication(ctx context.Context, message *CallCommunication) error
	ListCommunications(ctx context.Context, transactionID domain.TransactionID) ([]*CallCommunication, error)
	AddTag(ctx context.Context, tag *VerifiedItemTag) error
	ListTags(ctx context.Context, transactionID domain.TransactionID) ([]*VerifiedItemTag, error)

	GetStatusRecord(ctx context.Context, patientID domain.PatientID) (*StatusRecord, error)
	PutStatusRecord(ctx context.Context, record *StatusRecord) error

	// DeleteByPatient removes the patient's transactions together with their
	// communications, tags, and status record. Individual transactions are
	// never deleted outside the patient cascade.
	DeleteByPatient(ctx context.Context, patientID domain.PatientID) error
}
