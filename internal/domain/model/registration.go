package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// RegistrationID identifies a registration. Zero means "not yet persisted".
type RegistrationID uint64

func ParseRegistrationID(s string) (RegistrationID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRegistrationID, s)
	}

	return RegistrationID(id), nil
}

func (id RegistrationID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id RegistrationID) IsZero() bool {
	return id == 0
}

// UnmarshalJSON accepts both the numeric and the string form.
func (id *RegistrationID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = 0

		return nil
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}

	if raw == "" {
		*id = 0

		return nil
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRegistrationID, string(data))
	}

	*id = RegistrationID(value)

	return nil
}

// Registration binds one enrolled security key to one account.
type Registration struct {
	ID                RegistrationID
	Owner             string
	Variant           Variant
	PublicKeyMaterial string
	Label             string
	CreatedAt         time.Time
	// Extensions carries wire fields this service does not interpret.
	Extensions map[string]json.RawMessage
}

// NewRegistration builds an unpersisted U2F registration.
func NewRegistration(owner, publicKeyMaterial string) *Registration {
	return &Registration{
		Owner:             owner,
		Variant:           VariantU2F,
		PublicKeyMaterial: publicKeyMaterial,
	}
}

func (r *Registration) WithLabel(label string) *Registration {
	r.Label = label

	return r
}

func (r *Registration) WithVariant(variant Variant) *Registration {
	r.Variant = variant

	return r
}

// SameEntity reports whether both values describe the same stored registration.
func (r *Registration) SameEntity(other *Registration) bool {
	return r != nil && other != nil && !r.ID.IsZero() && r.ID == other.ID
}

// Validate checks a registration before it is handed to a store.
func (r *Registration) Validate() error {
	errs := NewValidationErrors()

	if r == nil {
		errs.Add("registration", "registration is required", "required")

		return errs
	}

	if !r.ID.IsZero() {
		errs.Add("id", "id is assigned by the store", "read_only")
	}

	if strings.TrimSpace(r.Owner) == "" {
		errs.Add("owner", "owner is required", "required")
	}

	if r.PublicKeyMaterial == "" {
		errs.Add("publicKeyMaterial", "public key material is required", "required")
	}

	if !r.Variant.IsKnown() {
		errs.Add("type", fmt.Sprintf("unknown registration type %q", r.Variant), "invalid")
	}

	if errs.HasErrors() {
		return errs
	}

	return nil
}

// Clone returns a deep copy.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}

	clone := *r
	if r.Extensions != nil {
		clone.Extensions = make(map[string]json.RawMessage, len(r.Extensions))
		for key, value := range r.Extensions {
			clone.Extensions[key] = append(json.RawMessage(nil), value...)
		}
	}

	return &clone
}

// Persisted returns a copy carrying the store-assigned id, stamped with now
// when the caller did not supply a creation time.
func (r *Registration) Persisted(id RegistrationID, now time.Time) *Registration {
	clone := r.Clone()
	clone.ID = id

	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}

	clone.CreatedAt = clone.CreatedAt.UTC()

	return clone
}

// EqualContent compares every field, ignoring the monotonic clock reading.
func (r *Registration) EqualContent(other *Registration) bool {
	if r == nil || other == nil {
		return r == other
	}

	return r.ID == other.ID &&
		r.Owner == other.Owner &&
		r.Variant == other.Variant &&
		r.PublicKeyMaterial == other.PublicKeyMaterial &&
		r.Label == other.Label &&
		r.CreatedAt.Equal(other.CreatedAt) &&
		maps.EqualFunc(r.Extensions, other.Extensions, func(a, b json.RawMessage) bool {
			return string(a) == string(b)
		})
}

// CloneAll deep-copies a slice, never returning nil.
func CloneAll(regs []*Registration) []*Registration {
	out := make([]*Registration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, reg.Clone())
	}

	return out
}

// FilterByOwner keeps the registrations bound to owner, never returning nil.
func FilterByOwner(regs []*Registration, owner string) []*Registration {
	out := make([]*Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Owner == owner {
			out = append(out, reg)
		}
	}

	return out
}
