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

// PostgreSQLOutboxRepository handles outbox entry persistence for PostgreSQL.
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository.
func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox entry.
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
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
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query, entry.ID, entry.Kind, payload, entry.Status,
		entry.Attempts, entry.MaxAttempts, entry.LastError, result, entry.ProcessedAt)

	return err
}

// GetByID retrieves an entry by its id.
func (r *PostgreSQLOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM outbox_entries WHERE id = $1`

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
func (r *PostgreSQLOutboxRepository) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox_entries
			  WHERE status IN ($1, $2, $3) AND attempts < max_attempts
			  ORDER BY created_at ASC
			  LIMIT $4
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
func (r *PostgreSQLOutboxRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = $2, updated_at = NOW()
			  WHERE id = $1 AND status IN ($3, $4, $5)`

	res, err := querier.ExecContext(ctx, query, id, domain.EntryStatusProcessing,
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
func (r *PostgreSQLOutboxRepository) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	result map[string]any,
) error {
	querier := database.GetTx(ctx, r.db)

	resultJSON, err := marshalJSON(result)
	if err != nil {
		return err
	}

	query := `UPDATE outbox_entries
			  SET status = $2, result = $3, processed_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND processed_at IS NULL`

	res, err := querier.ExecContext(ctx, query, id, domain.EntryStatusCompleted, resultJSON)
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
func (r *PostgreSQLOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = $2, last_error = $3, processed_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND processed_at IS NULL`

	res, err := querier.ExecContext(ctx, query, id, domain.EntryStatusFailed, errMsg)
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
func (r *PostgreSQLOutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET attempts = attempts + 1,
			      last_error = $2,
			      status = CASE WHEN attempts + 1 >= max_attempts THEN $3 ELSE $4 END,
			      updated_at = NOW()
			  WHERE id = $1 AND processed_at IS NULL AND attempts < max_attempts`

	res, err := querier.ExecContext(ctx, query, id, errMsg,
		domain.EntryStatusManualReview, domain.EntryStatusRetry)
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
func (r *PostgreSQLOutboxRepository) Retry(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries
			  SET status = $2, attempts = 0, last_error = NULL, updated_at = NOW()
			  WHERE id = $1 AND status = $3`

	res, err := querier.ExecContext(ctx, query, id, domain.EntryStatusPending, domain.EntryStatusManualReview)
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
func (r *PostgreSQLOutboxRepository) CountByStatus(ctx context.Context) (map[domain.EntryStatus]int64, error) {
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
