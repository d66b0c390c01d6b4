package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "unavailable", err: fmt.Errorf("%w: connection refused", model.ErrStoreUnavailable), expected: true},
		{name: "corrupt", err: fmt.Errorf("%w: bad json", model.ErrCorruptData)},
		{name: "not found", err: model.ErrRegistrationNotFound},
		{name: "rejected", err: fmt.Errorf("%w: POST answered 422", model.ErrRequestRejected)},
		{name: "validation", err: model.NewValidationErrors()},
		{name: "unrelated", err: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, model.IsRetryable(tc.err))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	errs := model.NewValidationErrors()
	require.False(t, errs.HasErrors())
	require.Equal(t, "invalid registration", errs.Error())

	errs.Add("owner", "owner is required", "required")
	require.True(t, errs.HasErrors())
	require.Equal(t, "invalid registration: owner is required", errs.Error())
	require.ErrorIs(t, errs, model.ErrInvalidRegistration)
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	variant, err := model.ParseVariant("webauthn")
	require.NoError(t, err)
	require.Equal(t, model.VariantWebAuthn, variant)

	_, err = model.ParseVariant("smartcard")
	require.ErrorIs(t, err, model.ErrUnknownVariant)
}
