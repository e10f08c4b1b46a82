package provider

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/allisson/chainsync/internal/chain/domain"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/validation"
)

// EVMClient is the opaque node surface an EVM provider drives. Signing,
// nonce, and gas management stay behind this interface.
type EVMClient interface {
	// ChainID probes the node and returns its chain id.
	ChainID(ctx context.Context) (int64, error)

	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (int64, error)

	// SubmitTransaction submits a contract transaction and returns its hash.
	SubmitTransaction(ctx context.Context, to string, calldata []byte) (string, error)

	// TransactionReceipt returns the receipt of a mined transaction, or
	// (nil, nil) while the transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*EVMReceipt, error)

	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, to string, calldata []byte) ([]byte, error)
}

// EVMReceipt is the raw receipt shape returned by an EVM node.
type EVMReceipt struct {
	TxHash            string
	Status            int64
	BlockNumber       int64
	GasUsed           *big.Int
	EffectiveGasPrice *big.Int
}

// EVMProvider adapts one EVM-compatible network to the ChainProvider
// contract.
type EVMProvider struct {
	config       domain.NetworkConfig
	client       EVMClient
	pollInterval time.Duration

	mu     sync.Mutex
	status domain.ConnectionStatus
}

// NewEVMProvider creates a new EVMProvider for the given network config.
func NewEVMProvider(config domain.NetworkConfig, client EVMClient, pollInterval time.Duration) *EVMProvider {
	return &EVMProvider{
		config:       config,
		client:       client,
		pollInterval: pollInterval,
		status:       domain.ConnectionStatusUninitialized,
	}
}

// Network returns the network this provider serves.
func (p *EVMProvider) Network() domain.Network {
	return p.config.Name
}

// Family returns FamilyEVM.
func (p *EVMProvider) Family() domain.Family {
	return domain.FamilyEVM
}

// Config returns the network configuration.
func (p *EVMProvider) Config() domain.NetworkConfig {
	return p.config
}

// Connect probes the node and marks the provider connected. Connecting
// an already connected provider is a no-op.
func (p *EVMProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == domain.ConnectionStatusConnected {
		return nil
	}

	p.status = domain.ConnectionStatusConnecting
	if _, err := p.client.ChainID(ctx); err != nil {
		p.status = domain.ConnectionStatusError
		return apperrors.Retryable(apperrors.Wrap(err, "connect "+p.config.Name.String()))
	}

	p.status = domain.ConnectionStatusConnected
	return nil
}

// IsConnected performs a live node probe; a provider that was connected
// but no longer answers reports false.
func (p *EVMProvider) IsConnected(ctx context.Context) bool {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()

	if status != domain.ConnectionStatusConnected {
		return false
	}

	_, err := p.client.ChainID(ctx)
	return err == nil
}

// Disconnect marks the provider disconnected.
func (p *EVMProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = domain.ConnectionStatusDisconnected
	return nil
}

// ensureConnected rejects operations on a provider without a successful
// Connect.
func (p *EVMProvider) ensureConnected() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != domain.ConnectionStatusConnected {
		return domain.ErrNotConnected
	}
	return nil
}

// MintNFT submits a mint transaction for assetID to recipient.
func (p *EVMProvider) MintNFT(
	ctx context.Context,
	recipient, assetID string,
	metadata map[string]any,
) (string, *domain.TxInfo, error) {
	if err := p.ensureConnected(); err != nil {
		return "", nil, err
	}
	if err := (validation.EVMAddress{}).Validate(recipient); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}

	tokenID, err := parseTokenID(assetID)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	tokenURI, _ := metadata["token_uri"].(string)
	calldata, err := encodeMintCall(recipient, tokenID, tokenURI)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	txHash, err := p.client.SubmitTransaction(ctx, p.config.ContractAddress, calldata)
	if err != nil {
		return "", nil, apperrors.Retryable(apperrors.Wrap(err, "submit mint"))
	}

	return txHash, p.txInfo(), nil
}

// TransferNFT submits a transfer of assetID between two addresses.
func (p *EVMProvider) TransferNFT(ctx context.Context, from, to, assetID string) (string, *domain.TxInfo, error) {
	if err := p.ensureConnected(); err != nil {
		return "", nil, err
	}
	if err := (validation.EVMAddress{}).Validate(from); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}
	if err := (validation.EVMAddress{}).Validate(to); err != nil {
		return "", nil, validation.WrapValidationError(err)
	}

	tokenID, err := parseTokenID(assetID)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	calldata, err := encodeTransferCall(from, to, tokenID)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	txHash, err := p.client.SubmitTransaction(ctx, p.config.ContractAddress, calldata)
	if err != nil {
		return "", nil, apperrors.Retryable(apperrors.Wrap(err, "submit transfer"))
	}

	return txHash, p.txInfo(), nil
}

// WaitForConfirmation polls the node for a receipt until the transaction
// settles at the configured confirmation depth or the timeout elapses.
func (p *EVMProvider) WaitForConfirmation(
	ctx context.Context,
	txHash string,
	timeout time.Duration,
) (*domain.TxReceipt, error) {
	if err := p.ensureConnected(); err != nil {
		return nil, err
	}

	return pollReceipt(ctx, p.pollInterval, timeout, func(ctx context.Context) (*domain.TxReceipt, bool, error) {
		raw, err := p.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, false, apperrors.Retryable(apperrors.Wrap(err, "fetch receipt"))
		}
		if raw == nil {
			return nil, false, nil
		}

		if p.config.Confirmations > 1 {
			head, err := p.client.BlockNumber(ctx)
			if err != nil {
				return nil, false, apperrors.Retryable(apperrors.Wrap(err, "fetch head block"))
			}
			if head-raw.BlockNumber+1 < p.config.Confirmations {
				return nil, false, nil
			}
		}

		return p.normalizeReceipt(raw), true, nil
	})
}

// GetTransactionStatus reports the current state of a transaction.
func (p *EVMProvider) GetTransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	if err := p.ensureConnected(); err != nil {
		return domain.TxStatusUnknown, err
	}

	raw, err := p.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return domain.TxStatusUnknown, apperrors.Retryable(apperrors.Wrap(err, "fetch receipt"))
	}
	if raw == nil {
		return domain.TxStatusPending, nil
	}
	if raw.Status == 1 {
		return domain.TxStatusConfirmed, nil
	}
	return domain.TxStatusFailed, nil
}

// GetNFTOwner returns the current owner of assetID. A reverted ownerOf
// call (nonexistent token) yields an empty owner, not an error.
func (p *EVMProvider) GetNFTOwner(ctx context.Context, assetID string) (string, error) {
	if err := p.ensureConnected(); err != nil {
		return "", err
	}

	tokenID, err := parseTokenID(assetID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	data, err := p.client.CallContract(ctx, p.config.ContractAddress, encodeOwnerOfCall(tokenID))
	if apperrors.Is(err, domain.ErrTransactionReverted) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Retryable(apperrors.Wrap(err, "call ownerOf"))
	}

	return decodeAddressResult(data)
}

// normalizeReceipt converts the raw node receipt into the uniform shape.
func (p *EVMProvider) normalizeReceipt(raw *EVMReceipt) *domain.TxReceipt {
	status := domain.ReceiptStatusFail
	if raw.Status == 1 {
		status = domain.ReceiptStatusSuccess
	}

	fee := new(big.Int)
	if raw.GasUsed != nil && raw.EffectiveGasPrice != nil {
		fee.Mul(raw.GasUsed, raw.EffectiveGasPrice)
	}

	return &domain.TxReceipt{
		TxHash:      raw.TxHash,
		Status:      status,
		BlockNumber: raw.BlockNumber,
		FeeUsed:     fee.String(),
	}
}

func (p *EVMProvider) txInfo() *domain.TxInfo {
	return &domain.TxInfo{
		Network:     p.config.Name,
		Contract:    p.config.ContractAddress,
		SubmittedAt: time.Now().UTC(),
	}
}
