// Package providertest provides an in-memory ChainProvider double for
// tests that need provider behavior without a node. It is the only place
// where transaction hashes are fabricated instead of observed on-chain.
package providertest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/allisson/chainsync/internal/chain/domain"
)

// Simulated is a configurable in-memory ChainProvider. All fields guarded
// by mu may be mutated between calls to steer test scenarios.
type Simulated struct {
	mu sync.Mutex

	config domain.NetworkConfig

	// ConnectErr makes Connect fail when set.
	ConnectErr error
	// SubmitErr makes MintNFT and TransferNFT fail when set.
	SubmitErr error
	// ConfirmationPending makes WaitForConfirmation time out with a nil
	// receipt when true.
	ConfirmationPending bool
	// ReceiptStatus is the status stamped on produced receipts.
	ReceiptStatus domain.ReceiptStatus
	// ResponseDelay is added to every call to simulate latency.
	ResponseDelay time.Duration

	connected bool
	owners    map[string]string
	receipts  map[string]*domain.TxReceipt
	nextBlock int64
}

// NewSimulated creates a simulated provider for the given network config.
func NewSimulated(config domain.NetworkConfig) *Simulated {
	return &Simulated{
		config:        config,
		ReceiptStatus: domain.ReceiptStatusSuccess,
		owners:        make(map[string]string),
		receipts:      make(map[string]*domain.TxReceipt),
		nextBlock:     100,
	}
}

func (s *Simulated) Network() domain.Network      { return s.config.Name }
func (s *Simulated) Family() domain.Family        { return s.config.Family }
func (s *Simulated) Config() domain.NetworkConfig { return s.config }

func (s *Simulated) Connect(ctx context.Context) error {
	s.delay()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.connected = true
	return nil
}

func (s *Simulated) IsConnected(ctx context.Context) bool {
	s.delay()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.ConnectErr == nil
}

func (s *Simulated) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Simulated) MintNFT(ctx context.Context, recipient, assetID string, metadata map[string]any) (string, *domain.TxInfo, error) {
	return s.submit(fmt.Sprintf("mint:%s:%s", recipient, assetID), assetID, recipient)
}

func (s *Simulated) TransferNFT(ctx context.Context, from, to, assetID string) (string, *domain.TxInfo, error) {
	return s.submit(fmt.Sprintf("transfer:%s:%s:%s", from, to, assetID), assetID, to)
}

func (s *Simulated) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*domain.TxReceipt, error) {
	s.delay()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConfirmationPending {
		return nil, nil
	}
	return s.receipts[txHash], nil
}

func (s *Simulated) GetTransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[txHash]
	if !ok {
		return domain.TxStatusUnknown, nil
	}
	if s.ConfirmationPending {
		return domain.TxStatusPending, nil
	}
	if receipt.Status == domain.ReceiptStatusFail {
		return domain.TxStatusFailed, nil
	}
	return domain.TxStatusConfirmed, nil
}

func (s *Simulated) GetNFTOwner(ctx context.Context, assetID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return "", domain.ErrNotConnected
	}
	return s.owners[assetID], nil
}

// submit produces a deterministic hash from the operation inputs, records
// a receipt for it, and applies the ownership effect.
func (s *Simulated) submit(seed, assetID, newOwner string) (string, *domain.TxInfo, error) {
	s.delay()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", nil, domain.ErrNotConnected
	}
	if s.SubmitErr != nil {
		return "", nil, s.SubmitErr
	}

	sum := sha256.Sum256([]byte(seed))
	txHash := "0x" + hex.EncodeToString(sum[:])

	s.nextBlock++
	s.receipts[txHash] = &domain.TxReceipt{
		TxHash:      txHash,
		Status:      s.ReceiptStatus,
		BlockNumber: s.nextBlock,
		FeeUsed:     "21000",
	}
	if s.ReceiptStatus == domain.ReceiptStatusSuccess {
		s.owners[assetID] = newOwner
	}

	return txHash, &domain.TxInfo{
		Network:     s.config.Name,
		Contract:    s.config.ContractAddress,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func (s *Simulated) delay() {
	if s.ResponseDelay > 0 {
		time.Sleep(s.ResponseDelay)
	}
}
