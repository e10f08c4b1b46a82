package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evmTestServer answers each JSON-RPC method with a fixed result.
func evmTestServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		require.True(t, ok, "unexpected method %s", req.Method)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestEVMRPCClient(t *testing.T) {
	operator := "0x1111111111111111111111111111111111111111"

	t.Run("chain id and block number", func(t *testing.T) {
		server := evmTestServer(t, map[string]any{
			"eth_chainId":     "0x89",
			"eth_blockNumber": "0x10",
		})
		defer server.Close()

		client := NewEVMRPCClient(testConfig(server.URL), operator)

		chainID, err := client.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(137), chainID)

		blockNumber, err := client.BlockNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(16), blockNumber)
	})

	t.Run("submit transaction sends from the operator", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				rpcRequest
				Params []map[string]string `json:"params"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Params, 1)
			assert.Equal(t, operator, req.Params[0]["from"])
			assert.Equal(t, "0xdeadbeef", req.Params[0]["data"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  "0xtxhash",
			})
		}))
		defer server.Close()

		client := NewEVMRPCClient(testConfig(server.URL), operator)
		txHash, err := client.SubmitTransaction(context.Background(), "0x2222222222222222222222222222222222222222", []byte{0xde, 0xad, 0xbe, 0xef})
		require.NoError(t, err)
		assert.Equal(t, "0xtxhash", txHash)
	})

	t.Run("transaction receipt parses hex fields", func(t *testing.T) {
		server := evmTestServer(t, map[string]any{
			"eth_getTransactionReceipt": map[string]string{
				"transactionHash":   "0xabc",
				"status":            "0x1",
				"blockNumber":       "0x64",
				"gasUsed":           "0x5208",
				"effectiveGasPrice": "0x3b9aca00",
			},
		})
		defer server.Close()

		client := NewEVMRPCClient(testConfig(server.URL), operator)
		receipt, err := client.TransactionReceipt(context.Background(), "0xabc")
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, "0xabc", receipt.TxHash)
		assert.Equal(t, int64(1), receipt.Status)
		assert.Equal(t, int64(100), receipt.BlockNumber)
		assert.Equal(t, big.NewInt(21000), receipt.GasUsed)
		assert.Equal(t, big.NewInt(1000000000), receipt.EffectiveGasPrice)
	})

	t.Run("pending transaction has no receipt", func(t *testing.T) {
		server := evmTestServer(t, map[string]any{
			"eth_getTransactionReceipt": nil,
		})
		defer server.Close()

		client := NewEVMRPCClient(testConfig(server.URL), operator)
		receipt, err := client.TransactionReceipt(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Nil(t, receipt)
	})

	t.Run("call contract decodes the hex result", func(t *testing.T) {
		server := evmTestServer(t, map[string]any{
			"eth_call": "0x0000000000000000000000002222222222222222222222222222222222222222",
		})
		defer server.Close()

		client := NewEVMRPCClient(testConfig(server.URL), operator)
		result, err := client.CallContract(context.Background(), "0x3333333333333333333333333333333333333333", []byte{0x01})
		require.NoError(t, err)
		assert.Len(t, result, 32)
	})
}

func TestParseHexInt64(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "0x0", want: 0},
		{input: "0x89", want: 137},
		{input: "89", want: 137},
		{input: "0x", wantErr: true},
		{input: "0xzz", wantErr: true},
		{input: "0xffffffffffffffffff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHexInt64(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
