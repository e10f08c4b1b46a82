package usecase

import (
	"context"
	"fmt"
	"log/slog"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/provider"
	apperrors "github.com/allisson/chainsync/internal/errors"
	"github.com/allisson/chainsync/internal/outbox/domain"
)

// OperationHandler drives one claimed entry through its chain operation.
// Outcomes split three ways: a definite result (success or on-chain
// failure) closes the entry, a validation failure closes it as failed,
// and a transport error is returned to the caller so the processor can
// schedule a retry.
type OperationHandler struct {
	config    HandlerConfig
	store     Store
	providers ProviderSource
	logger    *slog.Logger
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(
	config HandlerConfig,
	store Store,
	providers ProviderSource,
	logger *slog.Logger,
) *OperationHandler {
	return &OperationHandler{
		config:    config,
		store:     store,
		providers: providers,
		logger:    logger,
	}
}

// Handle claims the entry, submits its operation, and waits for
// confirmation. The returned error is non-nil only for transient
// failures that should count against the entry's attempts.
func (h *OperationHandler) Handle(ctx context.Context, entry *domain.OutboxEntry) error {
	if err := h.store.MarkProcessing(ctx, entry.ID); err != nil {
		return err
	}

	if h.logger != nil {
		h.logger.Info("processing outbox entry",
			slog.String("entry_id", entry.ID.String()),
			slog.String("kind", string(entry.Kind)),
			slog.Int("attempt", entry.Attempts+1),
		)
	}

	txHash, info, err := h.submit(ctx, entry)
	if err != nil {
		return h.settleError(ctx, entry, err)
	}

	receipt, err := h.waitForReceipt(ctx, info.Network, txHash)
	if err != nil {
		return h.settleError(ctx, entry, err)
	}

	if receipt == nil {
		// The confirmation window elapsed without the transaction
		// settling. The hash is recorded so an operator can trace it.
		return h.store.MarkFailed(ctx, entry.ID,
			fmt.Sprintf("transaction %s not confirmed within %s", txHash, h.config.ConfirmationTimeout))
	}

	if !receipt.Succeeded() {
		return h.store.MarkFailed(ctx, entry.ID,
			fmt.Sprintf("transaction %s failed on-chain", receipt.TxHash))
	}

	return h.store.MarkCompleted(ctx, entry.ID, map[string]any{
		"tx_hash":      receipt.TxHash,
		"block_number": receipt.BlockNumber,
		"fee_used":     receipt.FeeUsed,
		"network":      info.Network.String(),
		"contract":     info.Contract,
	})
}

// settleError routes a failure to the right state transition. Validation
// and definite on-chain failures close the entry even when a transport
// layer marked the chain retryable; everything marked retryable is
// handed back for attempt accounting. An unmarked error also retries,
// with a warning, since failing it definitively could drop recoverable
// work.
func (h *OperationHandler) settleError(ctx context.Context, entry *domain.OutboxEntry, err error) error {
	if apperrors.Is(err, apperrors.ErrInvalidInput) || apperrors.Is(err, chaindomain.ErrTransactionReverted) {
		return h.store.MarkFailed(ctx, entry.ID, err.Error())
	}

	if !apperrors.IsRetryable(err) && h.logger != nil {
		h.logger.Warn("treating unclassified error as transient",
			slog.String("entry_id", entry.ID.String()),
			slog.Any("error", err),
		)
	}
	return err
}

// submit decodes the entry payload and issues the matching chain call.
func (h *OperationHandler) submit(ctx context.Context, entry *domain.OutboxEntry) (string, *chaindomain.TxInfo, error) {
	switch entry.Kind {
	case domain.OperationKindMint:
		var p domain.MintPayload
		if err := h.decode(entry, &p); err != nil {
			return "", nil, err
		}
		chainProvider, err := h.resolveProvider(p.Network)
		if err != nil {
			return "", nil, err
		}
		return chainProvider.MintNFT(ctx, p.Recipient, p.AssetID, p.Metadata)

	case domain.OperationKindReward:
		var p domain.RewardPayload
		if err := h.decode(entry, &p); err != nil {
			return "", nil, err
		}
		chainProvider, err := h.resolveProvider(p.Network)
		if err != nil {
			return "", nil, err
		}
		return chainProvider.MintNFT(ctx, p.Recipient, p.AssetID, p.Metadata)

	case domain.OperationKindTransfer:
		var p domain.TransferPayload
		if err := h.decode(entry, &p); err != nil {
			return "", nil, err
		}
		chainProvider, err := h.resolveProvider(p.Network)
		if err != nil {
			return "", nil, err
		}
		return chainProvider.TransferNFT(ctx, p.From, p.To, p.AssetID)

	case domain.OperationKindPurchase:
		var p domain.PurchasePayload
		if err := h.decode(entry, &p); err != nil {
			return "", nil, err
		}
		chainProvider, err := h.resolveProvider(p.Network)
		if err != nil {
			return "", nil, err
		}
		return chainProvider.TransferNFT(ctx, p.Seller, p.Buyer, p.AssetID)

	case domain.OperationKindList:
		var p domain.ListPayload
		if err := h.decode(entry, &p); err != nil {
			return "", nil, err
		}
		chainProvider, err := h.resolveProvider(p.Network)
		if err != nil {
			return "", nil, err
		}
		escrow := chainProvider.Config().EscrowAddress
		if escrow == "" {
			return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput,
				"network "+chainProvider.Network().String()+" has no escrow address configured")
		}
		return chainProvider.TransferNFT(ctx, p.Owner, escrow, p.AssetID)

	default:
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput,
			"unsupported operation kind: "+string(entry.Kind))
	}
}

// decode converts the entry payload into its typed shape and validates it.
func (h *OperationHandler) decode(entry *domain.OutboxEntry, target interface{ Validate() error }) error {
	if err := domain.DecodePayload(entry.Payload, target); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	if err := target.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}

// resolveProvider returns the provider pinned by the payload, or the
// preferred provider of the default family when no network is set.
func (h *OperationHandler) resolveProvider(network string) (provider.ChainProvider, error) {
	if network != "" {
		return h.providers.GetProvider(chaindomain.Network(network))
	}
	return h.providers.GetPreferredProvider(h.config.DefaultFamily)
}

// waitForReceipt waits out the confirmation window on the network the
// transaction was submitted to.
func (h *OperationHandler) waitForReceipt(
	ctx context.Context,
	network chaindomain.Network,
	txHash string,
) (*chaindomain.TxReceipt, error) {
	chainProvider, err := h.providers.GetProvider(network)
	if err != nil {
		return nil, err
	}
	return chainProvider.WaitForConfirmation(ctx, txHash, h.config.ConfirmationTimeout)
}
