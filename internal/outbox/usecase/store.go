package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/chainsync/internal/database"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// EntryStore implements Store on top of an EntryRepository. State
// transitions run inside a transaction so the conditional update and its
// conflict-resolution read observe the same row.
type EntryStore struct {
	repo               EntryRepository
	txManager          database.TxManager
	defaultMaxAttempts int
	logger             *slog.Logger
}

// NewEntryStore creates a new EntryStore.
func NewEntryStore(repo EntryRepository, txManager database.TxManager, defaultMaxAttempts int, logger *slog.Logger) *EntryStore {
	return &EntryStore{
		repo:               repo,
		txManager:          txManager,
		defaultMaxAttempts: defaultMaxAttempts,
		logger:             logger,
	}
}

// Create validates and persists a new pending entry. The payload is
// checked against the typed shape of its kind before anything is stored,
// so malformed work never enters the queue.
func (s *EntryStore) Create(
	ctx context.Context,
	kind domain.OperationKind,
	payload map[string]any,
	maxAttempts int,
) (*domain.OutboxEntry, error) {
	if _, err := domain.ParseOperationKind(string(kind)); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, err
	}

	if maxAttempts <= 0 {
		maxAttempts = s.defaultMaxAttempts
	}

	entry := &domain.OutboxEntry{
		ID:          uuid.Must(uuid.NewV7()),
		Kind:        kind,
		Payload:     payload,
		Status:      domain.EntryStatusPending,
		MaxAttempts: maxAttempts,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("outbox entry created",
			slog.String("entry_id", entry.ID.String()),
			slog.String("kind", string(kind)),
		)
	}

	return entry, nil
}

// GetByID returns one entry.
func (s *EntryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPending returns up to limit claimable entries. A non-positive limit
// yields an empty batch without touching the repository.
func (s *EntryStore) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.repo.GetPending(ctx, limit)
}

// MarkProcessing claims an entry for processing.
func (s *EntryStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.MarkProcessing(ctx, id)
	})
}

// MarkCompleted records a successful result and closes the entry.
func (s *EntryStore) MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error {
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.MarkCompleted(ctx, id, result)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("outbox entry completed", slog.String("entry_id", id.String()))
	}
	return nil
}

// MarkFailed records a definite failure and closes the entry.
func (s *EntryStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.MarkFailed(ctx, id, errMsg)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Warn("outbox entry failed",
			slog.String("entry_id", id.String()),
			slog.String("error", errMsg),
		)
	}
	return nil
}

// IncrementAttempts records a transient failure, moving the entry to
// retry or to manual review once the attempt ceiling is reached.
func (s *EntryStore) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.IncrementAttempts(ctx, id, errMsg)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Warn("outbox entry attempt failed",
			slog.String("entry_id", id.String()),
			slog.String("error", errMsg),
		)
	}
	return nil
}

// Retry releases an entry held in manual review back to pending. This is
// the only exit from manual review and is driven by an operator.
func (s *EntryStore) Retry(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Retry(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("outbox entry released for retry", slog.String("entry_id", id.String()))
	}
	return nil
}

// GetProcessingStats returns the per-status entry counts.
func (s *EntryStore) GetProcessingStats(ctx context.Context) (*ProcessingStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ProcessingStats{Counts: counts}
	for _, count := range counts {
		stats.Total += count
	}
	return stats, nil
}

// validatePayload checks a payload against the typed shape of its kind.
func validatePayload(kind domain.OperationKind, payload map[string]any) error {
	var err error

	switch kind {
	case domain.OperationKindMint:
		var p domain.MintPayload
		if err = domain.DecodePayload(payload, &p); err == nil {
			err = p.Validate()
		}
	case domain.OperationKindTransfer:
		var p domain.TransferPayload
		if err = domain.DecodePayload(payload, &p); err == nil {
			err = p.Validate()
		}
	case domain.OperationKindList:
		var p domain.ListPayload
		if err = domain.DecodePayload(payload, &p); err == nil {
			err = p.Validate()
		}
	case domain.OperationKindPurchase:
		var p domain.PurchasePayload
		if err = domain.DecodePayload(payload, &p); err == nil {
			err = p.Validate()
		}
	case domain.OperationKindReward:
		var p domain.RewardPayload
		if err = domain.DecodePayload(payload, &p); err == nil {
			err = p.Validate()
		}
	}

	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}
