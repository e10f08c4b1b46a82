// Package domain defines the core outbox domain entities and types.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationKind is the closed set of external operations an outbox entry
// can request. Adding a kind requires extending the operation handler's
// dispatch switch, which keeps new kinds a compile-time-checked addition.
type OperationKind string

const (
	OperationKindMint     OperationKind = "mint"
	OperationKindTransfer OperationKind = "transfer"
	OperationKindList     OperationKind = "list"
	OperationKindPurchase OperationKind = "purchase"
	OperationKindReward   OperationKind = "reward"
)

// ParseOperationKind converts an operation kind string to an OperationKind.
// Returns an error if the kind string is not part of the closed set.
func ParseOperationKind(s string) (OperationKind, error) {
	switch OperationKind(s) {
	case OperationKindMint:
		return OperationKindMint, nil
	case OperationKindTransfer:
		return OperationKindTransfer, nil
	case OperationKindList:
		return OperationKindList, nil
	case OperationKindPurchase:
		return OperationKindPurchase, nil
	case OperationKindReward:
		return OperationKindReward, nil
	default:
		return "", fmt.Errorf(
			"invalid operation kind: %s (valid options: mint, transfer, list, purchase, reward)", s,
		)
	}
}

// EntryStatus represents the state machine position of an outbox entry.
//
// pending → processing → {completed | failed}; transient failures loop
// back through retry until attempts reach the ceiling, then manual_review.
type EntryStatus string

const (
	EntryStatusPending      EntryStatus = "pending"
	EntryStatusProcessing   EntryStatus = "processing"
	EntryStatusRetry        EntryStatus = "retry"
	EntryStatusError        EntryStatus = "error"
	EntryStatusCompleted    EntryStatus = "completed"
	EntryStatusFailed       EntryStatus = "failed"
	EntryStatusManualReview EntryStatus = "manual_review"
)

// Terminal reports whether the status ends automatic processing.
// ManualReview is terminal-but-actionable: only an explicit operator
// retry re-enters the pending state.
func (s EntryStatus) Terminal() bool {
	switch s {
	case EntryStatusCompleted, EntryStatusFailed, EntryStatusManualReview:
		return true
	default:
		return false
	}
}

// PendingStatuses are the statuses eligible for processing pickup.
func PendingStatuses() []EntryStatus {
	return []EntryStatus{EntryStatusPending, EntryStatusRetry, EntryStatusError}
}

// OutboxEntry is a durable record of one intended external operation.
// Entries are created by the API layer in pending status and mutated
// exclusively by the processor and operation handler; they are never
// deleted by the core.
type OutboxEntry struct {
	ID          uuid.UUID
	Kind        OperationKind
	Payload     map[string]any
	Status      EntryStatus
	Attempts    int
	MaxAttempts int
	LastError   *string
	Result      map[string]any
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AttemptsExhausted reports whether the entry has reached its attempt ceiling.
func (e *OutboxEntry) AttemptsExhausted() bool {
	return e.Attempts >= e.MaxAttempts
}
