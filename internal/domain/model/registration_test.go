package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestParseRegistrationID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		input       string
		expected    model.RegistrationID
		expectError bool
	}{
		{name: "plain number", input: "42", expected: 42},
		{name: "surrounding spaces", input: " 7 ", expected: 7},
		{name: "zero is rejected", input: "0", expectError: true},
		{name: "negative is rejected", input: "-1", expectError: true},
		{name: "text is rejected", input: "abc", expectError: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, err := model.ParseRegistrationID(tc.input)
			if tc.expectError {
				require.ErrorIs(t, err, model.ErrInvalidRegistrationID)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, id)
			require.Equal(t, tc.expected.String(), id.String())
		})
	}
}

func TestRegistrationID_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		input       string
		expected    model.RegistrationID
		expectError bool
	}{
		{name: "number", input: `12`, expected: 12},
		{name: "string", input: `"12"`, expected: 12},
		{name: "null", input: `null`, expected: 0},
		{name: "empty string", input: `""`, expected: 0},
		{name: "garbage", input: `"twelve"`, expectError: true},
		{name: "fraction", input: `1.5`, expectError: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var id model.RegistrationID
			err := json.Unmarshal([]byte(tc.input), &id)

			if tc.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, id)
		})
	}
}

func TestRegistration_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		registration  *model.Registration
		expectedField string
	}{
		{
			name:         "valid u2f registration",
			registration: model.NewRegistration("alice", "K1"),
		},
		{
			name:         "valid webauthn registration",
			registration: model.NewRegistration("alice", "K1").WithVariant(model.VariantWebAuthn),
		},
		{
			name:          "nil registration",
			expectedField: "registration",
		},
		{
			name:          "missing owner",
			registration:  model.NewRegistration("  ", "K1"),
			expectedField: "owner",
		},
		{
			name:          "missing key material",
			registration:  model.NewRegistration("alice", ""),
			expectedField: "publicKeyMaterial",
		},
		{
			name:          "unknown variant",
			registration:  model.NewRegistration("alice", "K1").WithVariant("smartcard"),
			expectedField: "type",
		},
		{
			name: "id already assigned",
			registration: &model.Registration{
				ID: 3, Owner: "alice", Variant: model.VariantU2F, PublicKeyMaterial: "K1",
			},
			expectedField: "id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.registration.Validate()
			if tc.expectedField == "" {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, model.ErrInvalidRegistration)

			var validationErrs *model.ValidationErrors
			require.ErrorAs(t, err, &validationErrs)
			require.Equal(t, tc.expectedField, validationErrs.Errors[0].Field)
		})
	}
}

func TestRegistration_PersistedAndClone(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	original := model.NewRegistration("alice", "K1").WithLabel("yubikey")
	original.Extensions = map[string]json.RawMessage{"counter": json.RawMessage(`3`)}

	persisted := original.Persisted(1, now)

	require.Equal(t, model.RegistrationID(1), persisted.ID)
	require.Equal(t, now, persisted.CreatedAt)
	require.True(t, original.ID.IsZero(), "the input must not be mutated")
	require.True(t, persisted.SameEntity(persisted.Clone()))
	require.True(t, persisted.EqualContent(persisted.Clone()))

	clone := persisted.Clone()
	clone.Extensions["counter"] = json.RawMessage(`4`)
	require.Equal(t, `3`, string(persisted.Extensions["counter"]))

	stamped := time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)
	original.CreatedAt = stamped
	require.Equal(t, stamped, original.Persisted(2, now).CreatedAt)
}

func TestRegistration_SameEntity(t *testing.T) {
	t.Parallel()

	first := &model.Registration{ID: 1, Owner: "alice"}
	renamed := &model.Registration{ID: 1, Owner: "alice", Label: "renamed"}
	other := &model.Registration{ID: 2, Owner: "alice"}
	unsaved := &model.Registration{Owner: "alice"}

	require.True(t, first.SameEntity(renamed))
	require.False(t, first.SameEntity(other))
	require.False(t, unsaved.SameEntity(unsaved))
	require.False(t, first.SameEntity(nil))
}

func TestFilterByOwner(t *testing.T) {
	t.Parallel()

	regs := []*model.Registration{
		{ID: 1, Owner: "alice"},
		{ID: 2, Owner: "bob"},
		{ID: 3, Owner: "alice"},
	}

	require.Len(t, model.FilterByOwner(regs, "alice"), 2)
	require.NotNil(t, model.FilterByOwner(regs, "carol"))
	require.Empty(t, model.FilterByOwner(nil, "carol"))
}
