package domain

import "errors"

// Chain domain errors.
var (
	// ErrNotConnected indicates a provider operation was invoked before a
	// successful Connect.
	ErrNotConnected = errors.New("provider not connected")

	// ErrProviderUnavailable indicates no healthy provider exists for the
	// requested network or family.
	ErrProviderUnavailable = errors.New("provider not available")

	// ErrTransactionReverted indicates a transaction was mined but failed
	// on-chain. Resubmission cannot help, so this is never retried.
	ErrTransactionReverted = errors.New("transaction reverted on-chain")

	// ErrInvalidAddress indicates an address that does not match the
	// network family's format.
	ErrInvalidAddress = errors.New("invalid address")
)
