package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/chainsync/internal/chain/domain"
	apperrors "github.com/allisson/chainsync/internal/errors"
)

// MockSolanaClient is a mock implementation of SolanaClient
type MockSolanaClient struct {
	mock.Mock
}

func (m *MockSolanaClient) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSolanaClient) SubmitMint(ctx context.Context, program, recipient, assetID string, metadata map[string]any) (string, error) {
	args := m.Called(ctx, program, recipient, assetID, metadata)
	return args.String(0), args.Error(1)
}

func (m *MockSolanaClient) SubmitTransfer(ctx context.Context, program, from, to, assetID string) (string, error) {
	args := m.Called(ctx, program, from, to, assetID)
	return args.String(0), args.Error(1)
}

func (m *MockSolanaClient) SignatureStatus(ctx context.Context, signature string) (*SolanaSignatureStatus, error) {
	args := m.Called(ctx, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SolanaSignatureStatus), args.Error(1)
}

func (m *MockSolanaClient) TransactionDetails(ctx context.Context, signature string) (*SolanaTransactionDetails, error) {
	args := m.Called(ctx, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SolanaTransactionDetails), args.Error(1)
}

func (m *MockSolanaClient) AssetOwner(ctx context.Context, assetID string) (string, error) {
	args := m.Called(ctx, assetID)
	return args.String(0), args.Error(1)
}

const (
	solanaRecipient = "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy"
	solanaSender    = "4Qkev8aNZcqFNSRhQzwyLMFSsi94jHqE8WNVTJzTP99F"
)

func solanaTestConfig() domain.NetworkConfig {
	return domain.NetworkConfig{
		Name:            "solana-mainnet",
		Family:          domain.FamilySolana,
		RPCURL:          "https://api.mainnet-beta.solana.com",
		ContractAddress: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s",
	}
}

func connectedSolanaProvider(t *testing.T, client *MockSolanaClient) *SolanaProvider {
	t.Helper()
	provider := NewSolanaProvider(solanaTestConfig(), client, 10*time.Millisecond)
	client.On("Health", mock.Anything).Return(nil).Once()
	require.NoError(t, provider.Connect(context.Background()))
	return provider
}

func TestSolanaProviderConnect(t *testing.T) {
	t.Run("connect probes cluster health", func(t *testing.T) {
		client := new(MockSolanaClient)
		client.On("Health", mock.Anything).Return(nil).Once()

		provider := NewSolanaProvider(solanaTestConfig(), client, time.Second)
		require.NoError(t, provider.Connect(context.Background()))
		client.AssertExpectations(t)
	})

	t.Run("connect failure is retryable", func(t *testing.T) {
		client := new(MockSolanaClient)
		client.On("Health", mock.Anything).Return(errors.New("node is behind"))

		provider := NewSolanaProvider(solanaTestConfig(), client, time.Second)
		err := provider.Connect(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsRetryable(err))
	})

	t.Run("disconnect stops reporting connected", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		require.NoError(t, provider.Disconnect(context.Background()))
		assert.False(t, provider.IsConnected(context.Background()))
	})
}

func TestSolanaProviderMintNFT(t *testing.T) {
	t.Run("submits a mint through the client", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SubmitMint", mock.Anything, solanaTestConfig().ContractAddress, solanaRecipient, "asset-1", mock.Anything).
			Return("mint-signature", nil)

		signature, info, err := provider.MintNFT(context.Background(), solanaRecipient, "asset-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "mint-signature", signature)
		require.NotNil(t, info)
		assert.Equal(t, domain.Network("solana-mainnet"), info.Network)
	})

	t.Run("fails before connect", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := NewSolanaProvider(solanaTestConfig(), client, time.Second)

		_, _, err := provider.MintNFT(context.Background(), solanaRecipient, "asset-1", nil)
		assert.ErrorIs(t, err, domain.ErrNotConnected)
	})

	t.Run("rejects a non-base58 recipient", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		_, _, err := provider.MintNFT(context.Background(), "0x4444444444444444444444444444444444444444", "asset-1", nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		client.AssertNotCalled(t, "SubmitMint", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSolanaProviderTransferNFT(t *testing.T) {
	t.Run("submits a transfer through the client", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SubmitTransfer", mock.Anything, solanaTestConfig().ContractAddress, solanaSender, solanaRecipient, "asset-1").
			Return("transfer-signature", nil)

		signature, _, err := provider.TransferNFT(context.Background(), solanaSender, solanaRecipient, "asset-1")
		require.NoError(t, err)
		assert.Equal(t, "transfer-signature", signature)
	})

	t.Run("submission failure is retryable", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SubmitTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("blockhash expired"))

		_, _, err := provider.TransferNFT(context.Background(), solanaSender, solanaRecipient, "asset-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsRetryable(err))
	})
}

func TestSolanaProviderWaitForConfirmation(t *testing.T) {
	t.Run("returns the receipt once finalized", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SignatureStatus", mock.Anything, "sig").
			Return(&SolanaSignatureStatus{Finalized: false}, nil).Once()
		client.On("SignatureStatus", mock.Anything, "sig").
			Return(&SolanaSignatureStatus{Finalized: true}, nil).Once()
		client.On("TransactionDetails", mock.Anything, "sig").
			Return(&SolanaTransactionDetails{Signature: "sig", Slot: 431, Fee: 5000}, nil)

		receipt, err := provider.WaitForConfirmation(context.Background(), "sig", time.Second)
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, domain.ReceiptStatusSuccess, receipt.Status)
		assert.Equal(t, int64(431), receipt.BlockNumber)
		assert.Equal(t, "5000", receipt.FeeUsed)
	})

	t.Run("failed signature yields a fail receipt", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SignatureStatus", mock.Anything, "sig").
			Return(&SolanaSignatureStatus{Finalized: true, Failed: true}, nil)
		client.On("TransactionDetails", mock.Anything, "sig").
			Return(&SolanaTransactionDetails{Signature: "sig", Slot: 431, Fee: 5000, Failed: true}, nil)

		receipt, err := provider.WaitForConfirmation(context.Background(), "sig", time.Second)
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, domain.ReceiptStatusFail, receipt.Status)
	})

	t.Run("timeout yields a nil receipt without an error", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("SignatureStatus", mock.Anything, "sig").Return(nil, nil)

		receipt, err := provider.WaitForConfirmation(context.Background(), "sig", 50*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, receipt)
	})
}

func TestSolanaProviderGetTransactionStatus(t *testing.T) {
	tests := []struct {
		name   string
		status *SolanaSignatureStatus
		want   domain.TxStatus
	}{
		{name: "unknown signature", status: nil, want: domain.TxStatusUnknown},
		{name: "pending before finality", status: &SolanaSignatureStatus{}, want: domain.TxStatusPending},
		{name: "confirmed when finalized", status: &SolanaSignatureStatus{Finalized: true}, want: domain.TxStatusConfirmed},
		{name: "failed on execution error", status: &SolanaSignatureStatus{Finalized: true, Failed: true}, want: domain.TxStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockSolanaClient)
			provider := connectedSolanaProvider(t, client)
			client.On("SignatureStatus", mock.Anything, "sig").Return(tt.status, nil)

			status, err := provider.GetTransactionStatus(context.Background(), "sig")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestSolanaProviderGetNFTOwner(t *testing.T) {
	t.Run("returns the asset owner", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("AssetOwner", mock.Anything, "asset-1").Return(solanaRecipient, nil)

		owner, err := provider.GetNFTOwner(context.Background(), "asset-1")
		require.NoError(t, err)
		assert.Equal(t, solanaRecipient, owner)
	})

	t.Run("missing account has no owner", func(t *testing.T) {
		client := new(MockSolanaClient)
		provider := connectedSolanaProvider(t, client)

		client.On("AssetOwner", mock.Anything, "asset-1").Return("", nil)

		owner, err := provider.GetNFTOwner(context.Background(), "asset-1")
		require.NoError(t, err)
		assert.Empty(t, owner)
	})
}
