// Package usecase implements the outbox business logic: entry lifecycle
// management, per-entry operation handling against chain providers, and
// the background processing loop.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/provider"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// EntryRepository defines outbox entry repository operations
type EntryRepository interface {
	Create(ctx context.Context, entry *domain.OutboxEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error)
	GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error
	Retry(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[domain.EntryStatus]int64, error)
}

// Store defines the entry lifecycle operations exposed to callers.
type Store interface {
	Create(ctx context.Context, kind domain.OperationKind, payload map[string]any, maxAttempts int) (*domain.OutboxEntry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error)
	GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error
	Retry(ctx context.Context, id uuid.UUID) error
	GetProcessingStats(ctx context.Context) (*ProcessingStats, error)
}

// ProviderSource resolves chain providers for the operation handler.
type ProviderSource interface {
	GetProvider(network chaindomain.Network) (provider.ChainProvider, error)
	GetPreferredProvider(family chaindomain.Family) (provider.ChainProvider, error)
}

// Handler processes one claimed outbox entry end to end.
type Handler interface {
	Handle(ctx context.Context, entry *domain.OutboxEntry) error
}

// ProcessingStats is a point-in-time count of entries per status.
type ProcessingStats struct {
	Counts map[domain.EntryStatus]int64 `json:"counts"`
	Total  int64                        `json:"total"`
}

// HandlerConfig holds operation handler configuration
type HandlerConfig struct {
	// DefaultFamily selects the provider family when a payload does not
	// pin a network.
	DefaultFamily chaindomain.Family
	// ConfirmationTimeout bounds waiting for a submitted transaction to
	// settle.
	ConfirmationTimeout time.Duration
}

// ProcessorConfig holds background processor configuration
type ProcessorConfig struct {
	// Interval is the polling interval between batches.
	Interval time.Duration
	// BatchSize is the maximum number of entries claimed per tick.
	BatchSize int
}
