// Package wire encodes registrations for the resource protocol.
//
// Every registration carries a "type" discriminator naming its variant. Fields
// the codec does not know are kept in Registration.Extensions and written back
// unchanged, so a round trip through an older peer never drops data.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
)

const (
	EnvelopeKey = "devices"

	fieldType              = "type"
	fieldID                = "id"
	fieldOwner             = "owner"
	fieldPublicKeyMaterial = "publicKeyMaterial"
	fieldCreatedAt         = "createdAt"
	fieldName              = "name"
)

type decodeFunc func(variant model.Variant, fields map[string]json.RawMessage) (*model.Registration, error)

var (
	knownFields = map[string]struct{}{
		fieldType:              {},
		fieldID:                {},
		fieldOwner:             {},
		fieldPublicKeyMaterial: {},
		fieldCreatedAt:         {},
		fieldName:              {},
	}

	decoders = map[model.Variant]decodeFunc{
		model.VariantU2F:      decodeKeyRegistration,
		model.VariantWebAuthn: decodeKeyRegistration,
	}
)

// Encode renders one registration as a tagged JSON object.
func Encode(reg *model.Registration) ([]byte, error) {
	fields, err := toFields(reg)
	if err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

// Decode parses one tagged JSON object. Every failure wraps model.ErrCorruptData.
func Decode(data []byte) (*model.Registration, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, corrupt("decoding registration: %v", err)
	}

	if fields == nil {
		return nil, corrupt("registration is null")
	}

	var tag string
	if err := json.Unmarshal(fields[fieldType], &tag); err != nil || tag == "" {
		return nil, corrupt("registration has no %q discriminator", fieldType)
	}

	variant := model.Variant(tag)

	decode, ok := decoders[variant]
	if !ok {
		return nil, corrupt("%v: %q", model.ErrUnknownVariant, tag)
	}

	return decode(variant, fields)
}

// EncodeEnvelope renders {"devices":[...]}.
func EncodeEnvelope(regs []*model.Registration) ([]byte, error) {
	devices := make([]map[string]any, 0, len(regs))

	for _, reg := range regs {
		fields, err := toFields(reg)
		if err != nil {
			return nil, err
		}

		devices = append(devices, fields)
	}

	return json.Marshal(map[string]any{EnvelopeKey: devices})
}

// DecodeEnvelope parses {"devices":[...]} holding persisted registrations.
// One bad entry fails the whole envelope.
func DecodeEnvelope(data []byte) ([]*model.Registration, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, corrupt("decoding envelope: %v", err)
	}

	raw, ok := envelope[EnvelopeKey]
	if !ok {
		return nil, corrupt("envelope has no %q key", EnvelopeKey)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, corrupt("decoding %q: %v", EnvelopeKey, err)
	}

	regs := make([]*model.Registration, 0, len(items))

	for index, item := range items {
		reg, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", index, err)
		}

		if reg.ID.IsZero() {
			return nil, corrupt("entry %d has no id", index)
		}

		regs = append(regs, reg)
	}

	return regs, nil
}

// DecodeBatch parses either a single tagged object or an array of them.
func DecodeBatch(data []byte) ([]*model.Registration, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, corrupt("empty body")
	}

	if trimmed[0] != '[' {
		reg, err := Decode(trimmed)
		if err != nil {
			return nil, err
		}

		return []*model.Registration{reg}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, corrupt("decoding batch: %v", err)
	}

	regs := make([]*model.Registration, 0, len(items))

	for index, item := range items {
		reg, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", index, err)
		}

		regs = append(regs, reg)
	}

	return regs, nil
}

func decodeKeyRegistration(variant model.Variant, fields map[string]json.RawMessage) (*model.Registration, error) {
	reg := &model.Registration{Variant: variant}

	if raw, ok := fields[fieldID]; ok {
		if err := json.Unmarshal(raw, &reg.ID); err != nil {
			return nil, corrupt("decoding %q: %v", fieldID, err)
		}
	}

	if err := json.Unmarshal(fields[fieldOwner], &reg.Owner); err != nil || reg.Owner == "" {
		return nil, corrupt("registration has no %q", fieldOwner)
	}

	if err := json.Unmarshal(fields[fieldPublicKeyMaterial], &reg.PublicKeyMaterial); err != nil || reg.PublicKeyMaterial == "" {
		return nil, corrupt("registration has no %q", fieldPublicKeyMaterial)
	}

	if raw, ok := fields[fieldCreatedAt]; ok && string(raw) != "null" {
		var createdAt time.Time
		if err := json.Unmarshal(raw, &createdAt); err != nil {
			return nil, corrupt("decoding %q: %v", fieldCreatedAt, err)
		}

		reg.CreatedAt = createdAt.UTC()
	}

	if raw, ok := fields[fieldName]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &reg.Label); err != nil {
			return nil, corrupt("decoding %q: %v", fieldName, err)
		}
	}

	for key, value := range fields {
		if _, known := knownFields[key]; known {
			continue
		}

		if reg.Extensions == nil {
			reg.Extensions = make(map[string]json.RawMessage)
		}

		reg.Extensions[key] = append(json.RawMessage(nil), value...)
	}

	return reg, nil
}

func toFields(reg *model.Registration) (map[string]any, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registration is nil", model.ErrInvalidRegistration)
	}

	if !reg.Variant.IsKnown() {
		return nil, fmt.Errorf("%w: %v: %q", model.ErrInvalidRegistration, model.ErrUnknownVariant, reg.Variant)
	}

	fields := make(map[string]any, len(knownFields)+len(reg.Extensions))

	for key, value := range reg.Extensions {
		if _, known := knownFields[key]; known {
			continue
		}

		fields[key] = value
	}

	fields[fieldType] = reg.Variant.String()
	fields[fieldOwner] = reg.Owner
	fields[fieldPublicKeyMaterial] = reg.PublicKeyMaterial

	if !reg.ID.IsZero() {
		fields[fieldID] = uint64(reg.ID)
	}

	if !reg.CreatedAt.IsZero() {
		fields[fieldCreatedAt] = reg.CreatedAt.UTC()
	}

	if reg.Label != "" {
		fields[fieldName] = reg.Label
	}

	return fields, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrCorruptData, fmt.Sprintf(format, args...))
}
