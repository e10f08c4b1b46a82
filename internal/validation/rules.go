// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/chainsync/internal/errors"
)

var (
	// evmAddressRegex matches a 0x-prefixed 20-byte hex address.
	evmAddressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

	// base58AddressRegex matches a base58-encoded 32-byte public key
	// (Bitcoin alphabet, no 0, O, I, l).
	base58AddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// EVMAddress validates the 0x-prefixed hex address format used by
// EVM-compatible networks.
type EVMAddress struct{}

// Validate checks the value is a well-formed EVM address.
func (EVMAddress) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_evm_address", "address must be a string")
	}
	if !evmAddressRegex.MatchString(s) {
		return validation.NewError("validation_evm_address", "must be a 0x-prefixed 40-hex-digit address")
	}
	return nil
}

// Base58Address validates the base58 public key format used by
// Solana-style networks.
type Base58Address struct{}

// Validate checks the value is a well-formed base58 address.
func (Base58Address) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base58_address", "address must be a string")
	}
	if !base58AddressRegex.MatchString(s) {
		return validation.NewError("validation_base58_address", "must be a base58-encoded public key")
	}
	return nil
}
