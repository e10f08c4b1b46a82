// Package repository provides data persistence implementations for outbox entries.
//
// Every state transition is a single conditional UPDATE keyed by the entry id
// and guarded by the entry's current state. Concurrent or repeated transition
// attempts lose the guard and affect zero rows instead of overwriting a
// terminal state, which is what prevents double-processing across restarts.
package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// entryColumns is the column list shared by both drivers.
const entryColumns = "id, kind, payload, status, attempts, max_attempts, last_error, result, processed_at, created_at, updated_at"

// entryRow is the scan target shared by both drivers.
type entryRow struct {
	id          uuid.UUID
	kind        string
	payload     []byte
	status      string
	attempts    int
	maxAttempts int
	lastError   sql.NullString
	result      []byte
	processedAt sql.NullTime
	createdAt   time.Time
	updatedAt   time.Time
}

// scanEntry scans one row into a domain entry.
func scanEntry(scan func(dest ...any) error) (*domain.OutboxEntry, error) {
	var row entryRow

	err := scan(
		&row.id, &row.kind, &row.payload, &row.status, &row.attempts, &row.maxAttempts,
		&row.lastError, &row.result, &row.processedAt, &row.createdAt, &row.updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry := &domain.OutboxEntry{
		ID:          row.id,
		Kind:        domain.OperationKind(row.kind),
		Status:      domain.EntryStatus(row.status),
		Attempts:    row.attempts,
		MaxAttempts: row.maxAttempts,
		CreatedAt:   row.createdAt,
		UpdatedAt:   row.updatedAt,
	}

	if len(row.payload) > 0 {
		if err := json.Unmarshal(row.payload, &entry.Payload); err != nil {
			return nil, err
		}
	}
	if len(row.result) > 0 {
		if err := json.Unmarshal(row.result, &entry.Result); err != nil {
			return nil, err
		}
	}
	if row.lastError.Valid {
		entry.LastError = &row.lastError.String
	}
	if row.processedAt.Valid {
		t := row.processedAt.Time
		entry.ProcessedAt = &t
	}

	return entry, nil
}

// marshalJSON serializes a payload or result map, mapping nil to SQL NULL.
func marshalJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// transitionOutcome resolves a zero-rows-affected conditional update.
// A repeated terminal transition is reported as success (idempotency);
// a genuinely conflicting state yields ErrConflict; a missing entry
// yields ErrNotFound.
func transitionOutcome(current *domain.OutboxEntry, getErr error, target domain.EntryStatus) error {
	if getErr != nil {
		return getErr
	}
	if current.Status == target {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrConflict, "entry "+current.ID.String()+" is "+string(current.Status))
}
