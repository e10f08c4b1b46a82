package rpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/allisson/chainsync/internal/chain/provider"
)

// EVMRPCClient implements provider.EVMClient against a standard Ethereum
// JSON-RPC node. Transactions are submitted with eth_sendTransaction, so
// signing and nonce management stay on the node's operator account.
type EVMRPCClient struct {
	rpc      *Client
	operator string
}

// NewEVMRPCClient creates an EVM JSON-RPC client. The operator address
// is the node-managed account transactions are sent from.
func NewEVMRPCClient(cfg Config, operator string) *EVMRPCClient {
	return &EVMRPCClient{
		rpc:      NewClient(cfg),
		operator: operator,
	}
}

// ChainID returns the node's chain id.
func (c *EVMRPCClient) ChainID(ctx context.Context) (int64, error) {
	var result string
	if err := c.rpc.Call(ctx, "eth_chainId", nil, &result); err != nil {
		return 0, err
	}
	return parseHexInt64(result)
}

// BlockNumber returns the current head block number.
func (c *EVMRPCClient) BlockNumber(ctx context.Context) (int64, error) {
	var result string
	if err := c.rpc.Call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return parseHexInt64(result)
}

// SubmitTransaction submits a contract transaction from the operator
// account and returns its hash.
func (c *EVMRPCClient) SubmitTransaction(ctx context.Context, to string, calldata []byte) (string, error) {
	params := []any{map[string]string{
		"from": c.operator,
		"to":   to,
		"data": "0x" + hex.EncodeToString(calldata),
	}}

	var txHash string
	if err := c.rpc.Call(ctx, "eth_sendTransaction", params, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// evmRawReceipt is the wire shape of eth_getTransactionReceipt.
type evmRawReceipt struct {
	TransactionHash   string `json:"transactionHash"`
	Status            string `json:"status"`
	BlockNumber       string `json:"blockNumber"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

// TransactionReceipt returns the receipt of a mined transaction, or
// (nil, nil) while the transaction is still pending.
func (c *EVMRPCClient) TransactionReceipt(ctx context.Context, txHash string) (*provider.EVMReceipt, error) {
	var raw *evmRawReceipt
	if err := c.rpc.Call(ctx, "eth_getTransactionReceipt", []any{txHash}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	status, err := parseHexInt64(raw.Status)
	if err != nil {
		return nil, err
	}
	blockNumber, err := parseHexInt64(raw.BlockNumber)
	if err != nil {
		return nil, err
	}
	gasUsed, err := parseHexBig(raw.GasUsed)
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseHexBig(raw.EffectiveGasPrice)
	if err != nil {
		return nil, err
	}

	return &provider.EVMReceipt{
		TxHash:            raw.TransactionHash,
		Status:            status,
		BlockNumber:       blockNumber,
		GasUsed:           gasUsed,
		EffectiveGasPrice: gasPrice,
	}, nil
}

// CallContract executes a read-only contract call at the latest block.
func (c *EVMRPCClient) CallContract(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	params := []any{
		map[string]string{
			"to":   to,
			"data": "0x" + hex.EncodeToString(calldata),
		},
		"latest",
	}

	var result string
	if err := c.rpc.Call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(result, "0x"))
}

// parseHexInt64 parses a 0x-prefixed hex quantity into an int64.
func parseHexInt64(s string) (int64, error) {
	value, err := parseHexBig(s)
	if err != nil {
		return 0, err
	}
	if !value.IsInt64() {
		return 0, fmt.Errorf("hex quantity %s overflows int64", s)
	}
	return value.Int64(), nil
}

// parseHexBig parses a 0x-prefixed hex quantity into a big integer.
func parseHexBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty hex quantity")
	}
	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity: %s", s)
	}
	return value, nil
}
