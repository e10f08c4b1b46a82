// Package provider implements the per-network chain adapters behind one
// polymorphic contract. Adapters normalize divergent address formats,
// finality rules, and fee models; signing, nonce, and gas details stay
// behind the wrapped client.
package provider

import (
	"context"
	"time"

	"github.com/allisson/chainsync/internal/chain/domain"
)

// ChainProvider is the uniform per-network contract. Operations invoked
// before a successful Connect fail with domain.ErrNotConnected rather
// than silently no-op.
type ChainProvider interface {
	// Network returns the network this provider serves.
	Network() domain.Network

	// Family returns the adapter family of the network.
	Family() domain.Family

	// Config returns the network configuration this provider was built with.
	Config() domain.NetworkConfig

	// Connect establishes the provider connection. Calling Connect on an
	// already connected provider is a no-op.
	Connect(ctx context.Context) error

	// IsConnected performs a live connectivity check, never a cached one.
	IsConnected(ctx context.Context) bool

	// Disconnect releases the connection.
	Disconnect(ctx context.Context) error

	// MintNFT submits a mint of assetID to recipient and returns the
	// transaction hash with submission metadata.
	MintNFT(ctx context.Context, recipient, assetID string, metadata map[string]any) (string, *domain.TxInfo, error)

	// TransferNFT submits a transfer of assetID between two addresses.
	TransferNFT(ctx context.Context, from, to, assetID string) (string, *domain.TxInfo, error)

	// WaitForConfirmation polls for a receipt at a fixed interval until
	// timeout. A nil receipt with a nil error means the timeout elapsed
	// without the transaction settling.
	WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*domain.TxReceipt, error)

	// GetTransactionStatus reports the externally observable transaction state.
	GetTransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error)

	// GetNFTOwner returns the current owner address of assetID, or an
	// empty string if the asset does not exist on-chain.
	GetNFTOwner(ctx context.Context, assetID string) (string, error)
}

// pollReceipt drives the shared confirmation loop: fetch is invoked at a
// fixed interval until it settles the transaction or the timeout elapses.
// fetch returns (receipt, true, nil) once settled and (nil, false, nil)
// while still pending; transport errors end the wait.
func pollReceipt(
	ctx context.Context,
	interval, timeout time.Duration,
	fetch func(ctx context.Context) (*domain.TxReceipt, bool, error),
) (*domain.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, settled, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if settled {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			// Timeout is reported as "no receipt", not as an error.
			if ctx.Err() == context.DeadlineExceeded {
				return nil, nil
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
