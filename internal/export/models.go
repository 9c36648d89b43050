// Package export owns the interface snapshot tables consumed by external
// systems. Snapshots are copies, not references: keys are opaque strings and
// nothing enforces a foreign key back to the transaction log, so a snapshot
// outlives the transaction it was copied from. Only the patient cascade
// removes snapshots.
package export

import "time"

// Snapshot is an independent copy of a call-stage transaction taken at spawn
// time. Policy identifiers and the patient phone are carried as ciphertext
// envelopes exactly as stored; replication never decrypts.
type Snapshot struct {
	ID            string
	PatientID     string
	TransactionID string
	RequestID     string

	PatientName       string
	InsuranceProvider string

	PolicyNumberEnvelope *string
	GroupNumberEnvelope  *string
	SubscriberIDEnvelope *string
	PhoneEnvelope        *string

	Status     string
	StartTime  *time.Time
	EndTime    *time.Time
	Transcript string

	CreatedAt time.Time
}

// CoverageCode is one per-procedure coverage row copied under a snapshot.
type CoverageCode struct {
	ID            string
	SnapshotID    string
	ProcedureCode string
	Category      string
	Verified      bool
	// Payload is the opaque coverage blob copied verbatim from the source row.
	Payload string
}

// Message mirrors one call communication of the triggering transaction.
type Message struct {
	ID         string
	SnapshotID string
	Timestamp  time.Time
	Speaker    string
	Body       string
	Kind       string
}
