package domain

import "time"

// TxStatus represents the externally observable state of a submitted transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusUnknown   TxStatus = "unknown"
)

// ReceiptStatus is the terminal outcome recorded in a transaction receipt.
type ReceiptStatus string

const (
	ReceiptStatusSuccess ReceiptStatus = "success"
	ReceiptStatusFail    ReceiptStatus = "fail"
)

// TxReceipt is the confirmation artifact for a mined transaction.
// FeeUsed is kept as a decimal string because fee units differ per family
// (wei vs lamports) and may exceed int64.
type TxReceipt struct {
	TxHash      string
	Status      ReceiptStatus
	BlockNumber int64
	FeeUsed     string
}

// Succeeded reports whether the receipt records an on-chain success.
func (r *TxReceipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}

// TxInfo carries submission metadata returned alongside a transaction hash.
type TxInfo struct {
	Network     Network
	Contract    string
	SubmittedAt time.Time
}
