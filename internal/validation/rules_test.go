package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/chainsync/internal/errors"
)

func TestWrapValidationError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, WrapValidationError(nil))
	})

	t.Run("wraps as invalid input", func(t *testing.T) {
		err := WrapValidationError(errors.New("recipient: cannot be blank"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "recipient: cannot be blank")
	})
}

func TestEVMAddress(t *testing.T) {
	rule := EVMAddress{}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"valid lowercase", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", false},
		{"valid mixed case", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", false},
		{"missing prefix", "ab5801a7d398351b8be11c439e05c5b3259aec9b", true},
		{"too short", "0xab5801", true},
		{"non-hex characters", "0xzz5801a7d398351b8be11c439e05c5b3259aec9b", true},
		{"not a string", 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBase58Address(t *testing.T) {
	rule := Base58Address{}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"valid", "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy", false},
		{"contains excluded characters", "0RpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy", true},
		{"too short", "4Nd1mYv", true},
		{"not a string", 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
