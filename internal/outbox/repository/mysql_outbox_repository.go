package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/chainsync/internal/database"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// MySQLOutboxRepository handles outbox entry persistence for MySQL.
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository.
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox entry.
func (r *MySQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	querier := database.GetTx(ctx, r.db)

	payload, err := marshalJSON(entry.Payload)
	if err != nil {
		return err
	}
	result, err := marshalJSON(entry.Result)
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox_entries (` + entryColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query, entry.ID, entry.Kind, payload, entry.Status,
		entry.Attempts, entry.MaxAttempts, entry.LastError, result, entry.ProcessedAt)

	return err
}

// GetByID retrieves an entry by its id.
func (r *MySQLOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM outbox_entries WHERE id = ?`

	entry, err := scanEntry(querier.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "outbox entry "+id.String())
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// GetPending retrieves entries eligible for processing, oldest first,
// capped at limit.
func (r *MySQLOutboxRepository) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox_entries
			  WHERE status IN (?, ?, ?) AND attempts < max_attempts
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query,
		domain.EntryStatusPending, domain.EntryStatusRetry, domain.EntryStatusError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []*domain.OutboxEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// MarkProcessing claims an entry for dispatch. Only entries in a
// pending-eligible status can be claimed.
func (r *MySQLOutboxRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = ?, updated_at = NOW()
			  WHERE id = ? AND status IN (?, ?, ?)`

	res, err := querier.ExecContext(ctx, query, domain.EntryStatusProcessing, id,
		domain.EntryStatusPending, domain.EntryStatusRetry, domain.EntryStatusError)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		return transitionOutcome(current, getErr, domain.EntryStatusProcessing)
	}

	return nil
}

// MarkCompleted records a successful terminal outcome. Repeated calls on
// an already completed entry are no-ops.
func (r *MySQLOutboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error {
	querier := database.GetTx(ctx, r.db)

	resultJSON, err := marshalJSON(result)
	if err != nil {
		return err
	}

	query := `UPDATE outbox_entries
			  SET status = ?, result = ?, processed_at = NOW(), updated_at = NOW()
			  WHERE id = ? AND processed_at IS NULL`

	res, err := querier.ExecContext(ctx, query, domain.EntryStatusCompleted, resultJSON, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		return transitionOutcome(current, getErr, domain.EntryStatusCompleted)
	}

	return nil
}

// MarkFailed records a definite terminal failure. Repeated calls on an
// already failed entry are no-ops.
func (r *MySQLOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = ?, last_error = ?, processed_at = NOW(), updated_at = NOW()
			  WHERE id = ? AND processed_at IS NULL`

	res, err := querier.ExecContext(ctx, query, domain.EntryStatusFailed, errMsg, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		return transitionOutcome(current, getErr, domain.EntryStatusFailed)
	}

	return nil
}

// IncrementAttempts records a transient failure in one atomic update:
// the attempt counter advances and the entry either re-enters the retry
// pool or, at the ceiling, escalates to manual review.
func (r *MySQLOutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	// MySQL evaluates SET assignments left to right against the updated
	// row, so the status CASE must run before attempts is incremented.
	query := `UPDATE outbox_entries
			  SET status = CASE WHEN attempts + 1 >= max_attempts THEN ? ELSE ? END,
			      attempts = attempts + 1,
			      last_error = ?,
			      updated_at = NOW()
			  WHERE id = ? AND processed_at IS NULL AND attempts < max_attempts`

	res, err := querier.ExecContext(ctx, query,
		domain.EntryStatusManualReview, domain.EntryStatusRetry, errMsg, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		return transitionOutcome(current, getErr, domain.EntryStatusManualReview)
	}

	return nil
}

// Retry resets a manual review entry back to pending with a fresh
// attempt allowance. Only operators call this; it is never automatic.
func (r *MySQLOutboxRepository) Retry(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = ?, attempts = 0, last_error = NULL, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	res, err := querier.ExecContext(ctx, query, domain.EntryStatusPending, id, domain.EntryStatusManualReview)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, id)
		return transitionOutcome(current, getErr, domain.EntryStatusPending)
	}

	return nil
}

// CountByStatus returns entry counts grouped by status.
func (r *MySQLOutboxRepository) CountByStatus(ctx context.Context) (map[domain.EntryStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM outbox_entries GROUP BY status`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[domain.EntryStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.EntryStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
