package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/chainsync/internal/metrics"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// storeWithMetrics decorates Store with metrics instrumentation.
type storeWithMetrics struct {
	next    Store
	metrics metrics.BusinessMetrics
}

// NewStoreWithMetrics wraps a Store with metrics recording.
func NewStoreWithMetrics(store Store, m metrics.BusinessMetrics) Store {
	return &storeWithMetrics{
		next:    store,
		metrics: m,
	}
}

// record emits the operation counter and duration for one store call.
func (s *storeWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "outbox", operation, status)
	s.metrics.RecordDuration(ctx, "outbox", operation, time.Since(start), status)
}

func (s *storeWithMetrics) Create(
	ctx context.Context,
	kind domain.OperationKind,
	payload map[string]any,
	maxAttempts int,
) (*domain.OutboxEntry, error) {
	start := time.Now()
	entry, err := s.next.Create(ctx, kind, payload, maxAttempts)
	s.record(ctx, "entry_create", start, err)
	return entry, err
}

func (s *storeWithMetrics) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	start := time.Now()
	entry, err := s.next.GetByID(ctx, id)
	s.record(ctx, "entry_get", start, err)
	return entry, err
}

func (s *storeWithMetrics) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	start := time.Now()
	entries, err := s.next.GetPending(ctx, limit)
	s.record(ctx, "entry_get_pending", start, err)
	return entries, err
}

func (s *storeWithMetrics) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.next.MarkProcessing(ctx, id)
	s.record(ctx, "entry_mark_processing", start, err)
	return err
}

func (s *storeWithMetrics) MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error {
	start := time.Now()
	err := s.next.MarkCompleted(ctx, id, result)
	s.record(ctx, "entry_mark_completed", start, err)
	return err
}

func (s *storeWithMetrics) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	start := time.Now()
	err := s.next.MarkFailed(ctx, id, errMsg)
	s.record(ctx, "entry_mark_failed", start, err)
	return err
}

func (s *storeWithMetrics) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	start := time.Now()
	err := s.next.IncrementAttempts(ctx, id, errMsg)
	s.record(ctx, "entry_increment_attempts", start, err)
	return err
}

func (s *storeWithMetrics) Retry(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.next.Retry(ctx, id)
	s.record(ctx, "entry_retry", start, err)
	return err
}

func (s *storeWithMetrics) GetProcessingStats(ctx context.Context) (*ProcessingStats, error) {
	start := time.Now()
	stats, err := s.next.GetProcessingStats(ctx)
	s.record(ctx, "entry_stats", start, err)
	return stats, err
}
