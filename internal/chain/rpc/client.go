// Package rpc implements the JSON-RPC clients the chain providers wrap.
// Outbound calls are rate limited here so a burst of outbox work cannot
// exhaust a node endpoint's quota.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/allisson/chainsync/internal/chain/domain"
	apperrors "github.com/allisson/chainsync/internal/errors"
)

// Config holds JSON-RPC client settings.
type Config struct {
	Endpoint       string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// Client is a JSON-RPC 2.0 client over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	nextID     atomic.Int64
}

// NewClient creates a new JSON-RPC client.
func NewClient(cfg Config) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes method with params and unmarshals the result into result.
// A JSON "null" result leaves result untouched; callers that need to
// distinguish null use a pointer result type.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}

	if rpcResp.Error != nil {
		// Execution reverts are definite on-chain failures, not transport
		// trouble, and are surfaced as such.
		if strings.Contains(strings.ToLower(rpcResp.Error.Message), "revert") {
			return apperrors.Wrap(domain.ErrTransactionReverted, rpcResp.Error.Message)
		}
		return rpcResp.Error
	}

	if result == nil || len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil
	}

	return json.Unmarshal(rpcResp.Result, result)
}
