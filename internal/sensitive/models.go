// Package sensitive bridges entity storage and the crypto service. Protected
// attributes are stored as envelopes, exposed masked by default, and
// decrypted only through the audited single-field Reveal operation.
package sensitive

import (
	"context"

	"verimed/pkg/domain"
)

// Field is the cross-cutting shape of a protected attribute: the ciphertext
// envelope (nil when the value was never set or written empty) and whether a
// value is actually encrypted behind it.
type Field struct {
	Envelope  *string
	Encrypted bool
}

// MaskedField is the structural, decryption-free view of a Field.
type MaskedField struct {
	Value     string `json:"value"`
	Encrypted bool   `json:"encrypted"`
}

// OwnerCheck is the caller-supplied predicate deciding whether the requester
// may reveal a field: record ownership or an elevated role. It runs before
// any decryption, and before existence is even considered, so a failed check
// is indistinguishable from a missing field.
type OwnerCheck func(ctx context.Context) bool

// FieldStore resolves which entity owns a protected attribute and persists
// its envelope. Implemented by the patient store.
type FieldStore interface {
	GetField(ctx context.Context, patientID domain.PatientID, name domain.FieldName) (Field, error)
	PutField(ctx context.Context, patientID domain.PatientID, name domain.FieldName, field Field) error
}
