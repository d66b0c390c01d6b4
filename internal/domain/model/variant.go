package model

// Variant discriminates the concrete credential kind stored in a registration.
type Variant string

const (
	VariantU2F      Variant = "u2f"
	VariantWebAuthn Variant = "webauthn"
)

var knownVariants = map[Variant]struct{}{
	VariantU2F:      {},
	VariantWebAuthn: {},
}

func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.IsKnown() {
		return "", ErrUnknownVariant
	}

	return v, nil
}

func (v Variant) IsKnown() bool {
	_, ok := knownVariants[v]

	return ok
}

func (v Variant) String() string {
	return string(v)
}
