package crypto

import "verimed/pkg/domain"

// Mask patterns are fixed per field kind. No key material is involved and the
// output never varies with plaintext length, so mask length cannot leak how
// long the underlying value is.
var maskPatterns = map[domain.FieldKind]string{
	domain.FieldKindDate:       "••••-••-••",
	domain.FieldKindPhone:      "(•••) •••-••••",
	domain.FieldKindEmail:      "•••••@•••••.•••",
	domain.FieldKindIdentifier: "•••••••••",
	domain.FieldKindGeneric:    "••••••••",
}

// Mask returns the fixed mask pattern for a field kind.
func Mask(kind domain.FieldKind) string {
	if pattern, ok := maskPatterns[kind]; ok {
		return pattern
	}
	return maskPatterns[domain.FieldKindGeneric]
}
