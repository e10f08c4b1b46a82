package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/chainsync/internal/outbox/domain"
	outboxUsecase "github.com/allisson/chainsync/internal/outbox/usecase"
)

// MockStore is a mock implementation of the outbox store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, kind outboxDomain.OperationKind, payload map[string]any, maxAttempts int) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, kind, payload, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id uuid.UUID) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockStore) GetPending(ctx context.Context, limit int) ([]*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockStore) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockStore) Retry(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetProcessingStats(ctx context.Context) (*outboxUsecase.ProcessingStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxUsecase.ProcessingStats), args.Error(1)
}
