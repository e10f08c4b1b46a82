package provider

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/allisson/chainsync/internal/chain/domain"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/validation"
)

// SolanaClient is the opaque RPC surface a Solana provider drives.
// Transaction building and signing stay behind this interface; key
// management is out of scope for the adapter.
type SolanaClient interface {
	// Health probes the RPC node.
	Health(ctx context.Context) error

	// SubmitMint submits a mint of assetID to recipient under the
	// configured program and returns the transaction signature.
	SubmitMint(ctx context.Context, program, recipient, assetID string, metadata map[string]any) (string, error)

	// SubmitTransfer submits an asset transfer and returns the signature.
	SubmitTransfer(ctx context.Context, program, from, to, assetID string) (string, error)

	// SignatureStatus reports the confirmation state of a signature, or
	// (nil, nil) when the cluster does not know it yet.
	SignatureStatus(ctx context.Context, signature string) (*SolanaSignatureStatus, error)

	// TransactionDetails fetches slot and fee data for a settled
	// transaction, or (nil, nil) when it is not yet available.
	TransactionDetails(ctx context.Context, signature string) (*SolanaTransactionDetails, error)

	// AssetOwner returns the owner of assetID, or an empty string when
	// the asset account does not exist.
	AssetOwner(ctx context.Context, assetID string) (string, error)
}

// SolanaSignatureStatus is the raw confirmation state of a signature.
type SolanaSignatureStatus struct {
	Finalized bool
	Failed    bool
}

// SolanaTransactionDetails carries slot and fee data for a settled
// transaction.
type SolanaTransactionDetails struct {
	Signature string
	Slot      int64
	Fee       int64
	Failed    bool
}

// SolanaProvider adapts one Solana-style network to the ChainProvider
// contract.
type SolanaProvider struct {
	config       domain.NetworkConfig
	client       SolanaClient
	pollInterval time.Duration

	mu     sync.Mutex
	status domain.ConnectionStatus
}

// NewSolanaProvider creates a new SolanaProvider for the given network config.
func NewSolanaProvider(config domain.NetworkConfig, client SolanaClient, pollInterval time.Duration) *SolanaProvider {
	return &SolanaProvider{
		config:       config,
		client:       client,
		pollInterval: pollInterval,
		status:       domain.ConnectionStatusUninitialized,
	}
}

// Network returns the network this provider serves.
func (p *SolanaProvider) Network() domain.Network {
	return p.config.Name
}

// Family returns FamilySolana.
func (p *SolanaProvider) Family() domain.Family {
	return domain.FamilySolana
}

// Config returns the network configuration.
func (p *SolanaProvider) Config() domain.NetworkConfig {
	return p.config
}

// Connect probes the cluster and marks the provider connected.
func (p *SolanaProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == domain.ConnectionStatusConnected {
		return nil
	}

	p.status = domain.ConnectionStatusConnecting
	if err := p.client.Health(ctx); err != nil {
		p.status = domain.ConnectionStatusError
		return apperrors.Retryable(apperrors.Wrap(err, "connect "+p.config.Name.String()))
	}

	p.status = domain.ConnectionStatusConnected
	return nil
}

// IsConnected performs a live cluster probe.
func (p *SolanaProvider) IsConnected(ctx context.Context) bool {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()

	if status != domain.ConnectionStatusConnected {
		return false
	}

	return p.client.Health(ctx) == nil
}

// Disconnect marks the provider disconnected.
func (p *SolanaProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = domain.ConnectionStatusDisconnected
	return nil
}

func (p *SolanaProvider) ensureConnected() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != domain.ConnectionStatusConnected {
		return domain.ErrNotConnected
	}
	return nil
}

// MintNFT submits a mint of assetID to recipient.
func (p *SolanaProvider) MintNFT(
	ctx context.Context,
	recipient, assetID string,
	metadata map[string]any,
) (string, *domain.TxInfo, error) {
	if err := p.ensureConnected(); err != nil {
		return "", nil, err
	}
	if err := (validation.Base58Address{}).Validate(recipient); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}

	signature, err := p.client.SubmitMint(ctx, p.config.ContractAddress, recipient, assetID, metadata)
	if err != nil {
		return "", nil, apperrors.Retryable(apperrors.Wrap(err, "submit mint"))
	}

	return signature, p.txInfo(), nil
}

// TransferNFT submits a transfer of assetID between two addresses.
func (p *SolanaProvider) TransferNFT(ctx context.Context, from, to, assetID string) (string, *domain.TxInfo, error) {
	if err := p.ensureConnected(); err != nil {
		return "", nil, err
	}
	if err := (validation.Base58Address{}).Validate(from); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}
	if err := (validation.Base58Address{}).Validate(to); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}

	signature, err := p.client.SubmitTransfer(ctx, p.config.ContractAddress, from, to, assetID)
	if err != nil {
		return "", nil, apperrors.Retryable(apperrors.Wrap(err, "submit transfer"))
	}

	return signature, p.txInfo(), nil
}

// WaitForConfirmation polls signature status until the transaction is
// finalized or the timeout elapses.
func (p *SolanaProvider) WaitForConfirmation(
	ctx context.Context,
	txHash string,
	timeout time.Duration,
) (*domain.TxReceipt, error) {
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	return pollReceipt(ctx, p.pollInterval, timeout, func(ctx context.Context) (*domain.TxReceipt, bool, error) {
		status, err := p.client.SignatureStatus(ctx, txHash)
		if err != nil {
			return nil, false, apperrors.Retryable(apperrors.Wrap(err, "fetch signature status"))
		}
		if status == nil || (!status.Finalized && !status.Failed) {
			return nil, false, nil
		}

		return p.buildReceipt(ctx, txHash, status.Failed)
	})
}

// buildReceipt assembles the uniform receipt once a signature settles,
// pulling slot and fee details when the cluster has them.
func (p *SolanaProvider) buildReceipt(
	ctx context.Context,
	signature string,
	failed bool,
) (*domain.TxReceipt, bool, error) {
	receipt := &domain.TxReceipt{
		TxHash: signature,
		Status: domain.ReceiptStatusSuccess,
	}
	if failed {
		receipt.Status = domain.ReceiptStatusFail
	}

	details, err := p.client.TransactionDetails(ctx, signature)
	if err != nil {
		return nil, false, apperrors.Retryable(apperrors.Wrap(err, "fetch transaction details"))
	}
	if details != nil {
		receipt.BlockNumber = details.Slot
		receipt.FeeUsed = strconv.FormatInt(details.Fee, 10)
		if details.Failed {
			receipt.Status = domain.ReceiptStatusFail
		}
	}

	return receipt, true, nil
}

// GetTransactionStatus reports the current state of a signature.
func (p *SolanaProvider) GetTransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	if err := p.ensureConnected(); err != nil {
		return domain.TxStatusUnknown, err
	}

	status, err := p.client.SignatureStatus(ctx, txHash)
	if err != nil {
		return domain.TxStatusUnknown, apperrors.Retryable(apperrors.Wrap(err, "fetch signature status"))
	}
	if status == nil {
		return domain.TxStatusUnknown, nil
	}
	if status.Failed {
		return domain.TxStatusFailed, nil
	}
	if status.Finalized {
		return domain.TxStatusConfirmed, nil
	}
	return domain.TxStatusPending, nil
}

// GetNFTOwner returns the current owner of assetID, or an empty string
// when the asset account does not exist.
func (p *SolanaProvider) GetNFTOwner(ctx context.Context, assetID string) (string, error) {
	if err := p.ensureConnected(); err != nil {
		return "", err
	}

	owner, err := p.client.AssetOwner(ctx, assetID)
	if err != nil {
		return "", apperrors.Retryable(apperrors.Wrap(err, "fetch asset owner"))
	}
	return owner, nil
}

func (p *SolanaProvider) txInfo() *domain.TxInfo {
	return &domain.TxInfo{
		Network:     p.config.Name,
		Contract:    p.config.ContractAddress,
		SubmittedAt: time.Now().UTC(),
	}
}
