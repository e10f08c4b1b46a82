package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/provider"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	// Execute the function to test the logic inside
	return fn(ctx)
}

// MockEntryRepository is a mock implementation of EntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

func (m *MockEntryRepository) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEntry), args.Error(1)
}

func (m *MockEntryRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result map[string]any) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockEntryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockEntryRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockEntryRepository) Retry(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepository) CountByStatus(ctx context.Context) (map[domain.EntryStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.EntryStatus]int64), args.Error(1)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, kind domain.OperationKind, payload map[string]any, maxAttempts int) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, kind, payload, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEntry), args.Error(1)
}

func (m *MockStore) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEntry), args.Error(1)
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

func (m *MockStore) GetProcessingStats(ctx context.Context) (*ProcessingStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessingStats), args.Error(1)
}

// MockProviderSource is a mock implementation of ProviderSource
type MockProviderSource struct {
	mock.Mock
}

func (m *MockProviderSource) GetProvider(network chaindomain.Network) (provider.ChainProvider, error) {
	args := m.Called(network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.ChainProvider), args.Error(1)
}

func (m *MockProviderSource) GetPreferredProvider(family chaindomain.Family) (provider.ChainProvider, error) {
	args := m.Called(family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.ChainProvider), args.Error(1)
}

// MockHandler is a mock implementation of Handler
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, entry *domain.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
