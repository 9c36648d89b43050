package export

import "context"

// Store persists snapshots and their owned children. Deleting a snapshot
// removes its children; the cascade is internal to this store and never
// reaches back into the transaction log.
type Store interface {
	CreateSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Snapshot, error)

	AddCoverageCode(ctx context.Context, row *CoverageCode) error
	ListCoverageCodes(ctx context.Context, snapshotID string) ([]*CoverageCode, error)

	AddMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, snapshotID string) ([]*Message, error)

	// DeleteSnapshot removes one snapshot and its children.
	DeleteSnapshot(ctx context.Context, id string) error
	// DeleteByPatient removes every snapshot of the patient with children.
	DeleteByPatient(ctx context.Context, patientID string) error

	// CountByPatient reports snapshot plus child rows still referencing the
	// patient. Used to verify the cascade guarantee.
	CountByPatient(ctx context.Context, patientID string) (int, error)
}
