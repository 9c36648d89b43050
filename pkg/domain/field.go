package domain

import dErrors "verimed/pkg/domain-errors"

// FieldKind groups sensitive attributes by their mask shape. Masks are fixed
// per kind so output never varies with plaintext length.
type FieldKind string

const (
	FieldKindDate       FieldKind = "date"
	FieldKindPhone      FieldKind = "phone"
	FieldKindEmail      FieldKind = "email"
	FieldKindIdentifier FieldKind = "identifier"
	FieldKindGeneric    FieldKind = "generic"
)

// FieldName names a protected patient or insurance attribute.
type FieldName string

const (
	FieldBirthDate    FieldName = "birth_date"
	FieldNationalID   FieldName = "national_id"
	FieldPolicyNumber FieldName = "policy_number"
	FieldGroupNumber  FieldName = "group_number"
	FieldSubscriberID FieldName = "subscriber_id"
	FieldPhone        FieldName = "phone"
	FieldEmail        FieldName = "email"
	FieldAddress      FieldName = "address"
)

// fieldKinds is the single source of truth for which mask shape each
// protected attribute uses.
var fieldKinds = map[FieldName]FieldKind{
	FieldBirthDate:    FieldKindDate,
	FieldNationalID:   FieldKindIdentifier,
	FieldPolicyNumber: FieldKindIdentifier,
	FieldGroupNumber:  FieldKindIdentifier,
	FieldSubscriberID: FieldKindIdentifier,
	FieldPhone:        FieldKindPhone,
	FieldEmail:        FieldKindEmail,
	FieldAddress:      FieldKindGeneric,
}

// ParseFieldName constructs a FieldName from external input.
func ParseFieldName(raw string) (FieldName, error) {
	name := FieldName(raw)
	if _, ok := fieldKinds[name]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown sensitive field: "+raw)
	}
	return name, nil
}

// Kind returns the mask shape for a field, defaulting to generic.
func (f FieldName) Kind() FieldKind {
	if kind, ok := fieldKinds[f]; ok {
		return kind
	}
	return FieldKindGeneric
}
