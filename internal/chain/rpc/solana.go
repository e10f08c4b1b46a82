package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/allisson/chainsync/internal/chain/provider"
	apperrors "github.com/allisson/chainsync/internal/errors"
)

// SolanaRPCClient implements provider.SolanaClient. Reads go straight to
// a Solana JSON-RPC node at finalized commitment. Writes go through a
// relayer sidecar that holds the signing keys, so this process never
// touches private key material.
type SolanaRPCClient struct {
	rpc        *Client
	relayerURL string
	httpClient *http.Client
}

// NewSolanaRPCClient creates a Solana client. relayerURL may be empty,
// in which case submissions fail and only read operations work.
func NewSolanaRPCClient(cfg Config, relayerURL string) *SolanaRPCClient {
	return &SolanaRPCClient{
		rpc:        NewClient(cfg),
		relayerURL: relayerURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Health probes the RPC node with getHealth.
func (c *SolanaRPCClient) Health(ctx context.Context) error {
	var result string
	if err := c.rpc.Call(ctx, "getHealth", nil, &result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("node reported health %q", result)
	}
	return nil
}

// SubmitMint asks the relayer to mint assetID to recipient.
func (c *SolanaRPCClient) SubmitMint(ctx context.Context, program, recipient, assetID string, metadata map[string]any) (string, error) {
	return c.relay(ctx, "/v1/mint", map[string]any{
		"program":   program,
		"recipient": recipient,
		"asset_id":  assetID,
		"metadata":  metadata,
	})
}

// SubmitTransfer asks the relayer to transfer assetID between owners.
func (c *SolanaRPCClient) SubmitTransfer(ctx context.Context, program, from, to, assetID string) (string, error) {
	return c.relay(ctx, "/v1/transfer", map[string]any{
		"program":  program,
		"from":     from,
		"to":       to,
		"asset_id": assetID,
	})
}

// SignatureStatus reports the confirmation state of a signature at
// finalized commitment, or nil when the node does not know it.
func (c *SolanaRPCClient) SignatureStatus(ctx context.Context, signature string) (*provider.SolanaSignatureStatus, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
	if err := c.rpc.Call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return nil, nil
	}

	entry := result.Value[0]
	return &provider.SolanaSignatureStatus{
		Finalized: entry.ConfirmationStatus == "finalized",
		Failed:    len(entry.Err) > 0 && string(entry.Err) != "null",
	}, nil
}

// TransactionDetails fetches slot and fee data for a settled signature.
func (c *SolanaRPCClient) TransactionDetails(ctx context.Context, signature string) (*provider.SolanaTransactionDetails, error) {
	var result struct {
		Slot int64 `json:"slot"`
		Meta struct {
			Fee int64           `json:"fee"`
			Err json.RawMessage `json:"err"`
		} `json:"meta"`
	}
	params := []any{signature, map[string]any{
		"commitment":                     "finalized",
		"maxSupportedTransactionVersion": 0,
	}}
	if err := c.rpc.Call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	return &provider.SolanaTransactionDetails{
		Signature: signature,
		Slot:      result.Slot,
		Fee:       result.Meta.Fee,
		Failed:    len(result.Meta.Err) > 0 && string(result.Meta.Err) != "null",
	}, nil
}

// AssetOwner returns the owner of the token account backing assetID,
// or an empty string when the account does not exist.
func (c *SolanaRPCClient) AssetOwner(ctx context.Context, assetID string) (string, error) {
	var result struct {
		Value *struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner string `json:"owner"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	params := []any{assetID, map[string]any{
		"encoding":   "jsonParsed",
		"commitment": "finalized",
	}}
	if err := c.rpc.Call(ctx, "getAccountInfo", params, &result); err != nil {
		return "", err
	}
	if result.Value == nil {
		return "", nil
	}
	return result.Value.Data.Parsed.Info.Owner, nil
}

// relay POSTs a submission request to the relayer sidecar and returns
// the signature it produced.
func (c *SolanaRPCClient) relay(ctx context.Context, path string, payload map[string]any) (string, error) {
	if c.relayerURL == "" {
		// A missing relayer is a deployment mistake, not a transient
		// fault; retrying would burn the entry's attempts for nothing.
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "solana relayer url is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(err, "marshal relayer request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayerURL+path, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, "build relayer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Retryable(apperrors.Wrap(err, "call relayer"))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Retryable(apperrors.Wrap(err, "read relayer response"))
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("relayer returned status %d: %s", resp.StatusCode, raw)
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", apperrors.Retryable(err)
		}
		return "", err
	}

	var parsed struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.Wrap(err, "decode relayer response")
	}
	if parsed.Signature == "" {
		return "", apperrors.New("relayer response is missing a signature")
	}
	return parsed.Signature, nil
}
