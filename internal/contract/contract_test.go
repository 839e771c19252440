package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPaymentValidator(t *testing.T) {
	v, err := NewProcessPaymentValidator()
	require.NoError(t, err)

	t.Run("ValidBody", func(t *testing.T) {
		ok, violations, err := v.Validate([]byte(`{"card_number":"4111111111111111","cvv":"123"}`))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, violations)
	})

	t.Run("CardNumberOptionalCVV", func(t *testing.T) {
		ok, _, err := v.Validate([]byte(`{"card_number":"4242424242420000"}`))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("MissingCardNumber", func(t *testing.T) {
		ok, violations, err := v.Validate([]byte(`{"cvv":"123"}`))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NotEmpty(t, violations)
	})

	t.Run("NonNumericCardNumber", func(t *testing.T) {
		ok, violations, err := v.Validate([]byte(`{"card_number":"4111-1111-1111-1111"}`))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NotEmpty(t, violations)
	})

	t.Run("UnknownField", func(t *testing.T) {
		ok, _, err := v.Validate([]byte(`{"card_number":"4111111111111111","pin":"0000"}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, _, err := v.Validate([]byte(`{card_number`))
		assert.Error(t, err)
	})
}

func TestFormatErrors(t *testing.T) {
	assert.Empty(t, FormatErrors(nil))
	assert.Equal(t, "Validation errors: a; b", FormatErrors([]string{"a", "b"}))
}
