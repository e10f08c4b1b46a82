package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/providertest"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

func testHandlerConfig() HandlerConfig {
	return HandlerConfig{
		DefaultFamily:       chaindomain.FamilyEVM,
		ConfirmationTimeout: time.Second,
	}
}

func connectedSimulated(t *testing.T, name string) *providertest.Simulated {
	t.Helper()
	sim := providertest.NewSimulated(chaindomain.NetworkConfig{
		Name:            chaindomain.Network(name),
		Family:          chaindomain.FamilyEVM,
		ContractAddress: "0x2222222222222222222222222222222222222222",
		EscrowAddress:   "0x3333333333333333333333333333333333333333",
	})
	require.NoError(t, sim.Connect(context.Background()))
	return sim
}

func mintEntry(network string) *domain.OutboxEntry {
	return &domain.OutboxEntry{
		ID:   uuid.Must(uuid.NewV7()),
		Kind: domain.OperationKindMint,
		Payload: map[string]any{
			"network":   network,
			"recipient": "0x4444444444444444444444444444444444444444",
			"asset_id":  "42",
		},
		Status:      domain.EntryStatusPending,
		MaxAttempts: 3,
	}
}

func TestOperationHandlerHandle(t *testing.T) {
	t.Run("completes a mint end to end", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkCompleted", mock.Anything, entry.ID, mock.MatchedBy(func(result map[string]any) bool {
			return result["tx_hash"] != "" && result["network"] == "polygon"
		})).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("uses the preferred provider when the payload has no network", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		providers := new(MockProviderSource)
		providers.On("GetPreferredProvider", chaindomain.FamilyEVM).Return(sim, nil)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("")
		delete(entry.Payload, "network")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkCompleted", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		providers.AssertExpectations(t)
	})

	t.Run("validation failure closes the entry as failed", func(t *testing.T) {
		providers := new(MockProviderSource)

		entry := mintEntry("polygon")
		delete(entry.Payload, "recipient")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
		providers.AssertNotCalled(t, "GetProvider", mock.Anything)
	})

	t.Run("reverted transaction closes the entry as failed", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.SubmitErr = chaindomain.ErrTransactionReverted
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("on-chain failure receipt closes the entry as failed", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.ReceiptStatus = chaindomain.ReceiptStatusFail
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("confirmation timeout closes the entry as failed", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.ConfirmationPending = true
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.MatchedBy(func(msg string) bool {
			return len(msg) > 0
		})).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("transient submit failure is returned for retry", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.SubmitErr = apperrors.Retryable(errors.New("rpc timeout"))
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		err := handler.Handle(context.Background(), entry)
		require.Error(t, err)
		assert.True(t, apperrors.IsRetryable(err))
		store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("definite failure wins over a retryable wrapper", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.SubmitErr = apperrors.Retryable(apperrors.Wrap(apperrors.ErrInvalidInput, "relayer rejected payload"))
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("unclassified submit failure is still returned for retry", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		sim.SubmitErr = errors.New("connection reset by peer")
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		err := handler.Handle(context.Background(), entry)
		require.Error(t, err)
		assert.False(t, apperrors.IsRetryable(err))
		store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unavailable provider is returned for retry", func(t *testing.T) {
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).
			Return(nil, chaindomain.ErrProviderUnavailable)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		err := handler.Handle(context.Background(), entry)
		assert.ErrorIs(t, err, chaindomain.ErrProviderUnavailable)
	})

	t.Run("claim conflict stops before any chain call", func(t *testing.T) {
		providers := new(MockProviderSource)

		entry := mintEntry("polygon")
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(apperrors.ErrConflict)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		err := handler.Handle(context.Background(), entry)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		providers.AssertNotCalled(t, "GetProvider", mock.Anything)
	})
}

func TestOperationHandlerKindRouting(t *testing.T) {
	t.Run("list moves the asset into escrow", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := &domain.OutboxEntry{
			ID:   uuid.Must(uuid.NewV7()),
			Kind: domain.OperationKindList,
			Payload: map[string]any{
				"network":  "polygon",
				"owner":    "0x4444444444444444444444444444444444444444",
				"asset_id": "42",
			},
		}
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkCompleted", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))

		owner, err := sim.GetNFTOwner(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "0x3333333333333333333333333333333333333333", owner)
	})

	t.Run("list without an escrow address fails the entry", func(t *testing.T) {
		sim := providertest.NewSimulated(chaindomain.NetworkConfig{
			Name:            "polygon",
			Family:          chaindomain.FamilyEVM,
			ContractAddress: "0x2222222222222222222222222222222222222222",
		})
		require.NoError(t, sim.Connect(context.Background()))
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := &domain.OutboxEntry{
			ID:   uuid.Must(uuid.NewV7()),
			Kind: domain.OperationKindList,
			Payload: map[string]any{
				"network":  "polygon",
				"owner":    "0x4444444444444444444444444444444444444444",
				"asset_id": "42",
			},
		}
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkFailed", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))
		store.AssertExpectations(t)
	})

	t.Run("purchase releases the asset to the buyer", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := &domain.OutboxEntry{
			ID:   uuid.Must(uuid.NewV7()),
			Kind: domain.OperationKindPurchase,
			Payload: map[string]any{
				"network":  "polygon",
				"seller":   "0x4444444444444444444444444444444444444444",
				"buyer":    "0x5555555555555555555555555555555555555555",
				"asset_id": "42",
			},
		}
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkCompleted", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))

		owner, err := sim.GetNFTOwner(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "0x5555555555555555555555555555555555555555", owner)
	})

	t.Run("reward mints to the player", func(t *testing.T) {
		sim := connectedSimulated(t, "polygon")
		providers := new(MockProviderSource)
		providers.On("GetProvider", chaindomain.Network("polygon")).Return(sim, nil)

		entry := &domain.OutboxEntry{
			ID:   uuid.Must(uuid.NewV7()),
			Kind: domain.OperationKindReward,
			Payload: map[string]any{
				"network":   "polygon",
				"recipient": "0x4444444444444444444444444444444444444444",
				"asset_id":  "99",
			},
		}
		store := new(MockStore)
		store.On("MarkProcessing", mock.Anything, entry.ID).Return(nil)
		store.On("MarkCompleted", mock.Anything, entry.ID, mock.Anything).Return(nil)

		handler := NewOperationHandler(testHandlerConfig(), store, providers, nil)
		require.NoError(t, handler.Handle(context.Background(), entry))

		owner, err := sim.GetNFTOwner(context.Background(), "99")
		require.NoError(t, err)
		assert.Equal(t, "0x4444444444444444444444444444444444444444", owner)
	})
}
