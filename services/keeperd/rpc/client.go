// Package rpc defines the keeper's view of the chain RPC surface it reads
// market state from and submits field-commitment updates to. Transport is
// plain HTTP/JSON (see SPEC_FULL.md section C: grpc was a teacher dependency
// dropped because its only use was the chain's own P2P wire protocol, which
// this system has no equivalent of).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/field"
)

// MarketSnapshot is the subset of on-chain state the keeper needs per
// cycle: the raw field inputs plus the currently stored commitment (if
// any) and its age.
type MarketSnapshot struct {
	Market            field.Snapshot
	StoredCommitment  *field.Commitment
	CommitmentAgeSecs int64
}

// Client is everything keeperd needs from the chain, kept narrow enough
// that a mock satisfies it trivially in tests.
type Client interface {
	FetchMarketSnapshot(ctx context.Context, marketAddress string) (MarketSnapshot, error)
	SubmitFieldCommitment(ctx context.Context, marketAddress string, commitment field.Commitment, signature []byte) (txHash string, err error)
	Health(ctx context.Context) error
	Balance(ctx context.Context, address string) (uint64, error)
}

// HTTPClient implements Client over a JSON/HTTP RPC endpoint.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPClient builds a client whose shared *http.Client uses the supplied
// timeout as its per-request Timeout; callers may bound a call further with
// its context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", fxerrors.ErrRpcError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", fxerrors.ErrRpcError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", fxerrors.ErrRpcError, resp.StatusCode, string(payload))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", fxerrors.ErrRpcError, err)
	}
	return nil
}

func (c *HTTPClient) FetchMarketSnapshot(ctx context.Context, marketAddress string) (MarketSnapshot, error) {
	var snapshot MarketSnapshot
	if err := c.do(ctx, http.MethodGet, "/markets/"+marketAddress+"/state", nil, &snapshot); err != nil {
		return MarketSnapshot{}, err
	}
	return snapshot, nil
}

type submitCommitmentRequest struct {
	Commitment field.Commitment `json:"commitment"`
	Signature  []byte           `json:"signature"`
}

type submitCommitmentResponse struct {
	TxHash string `json:"tx_hash"`
}

func (c *HTTPClient) SubmitFieldCommitment(ctx context.Context, marketAddress string, commitment field.Commitment, signature []byte) (string, error) {
	var resp submitCommitmentResponse
	req := submitCommitmentRequest{Commitment: commitment, Signature: signature}
	if err := c.do(ctx, http.MethodPost, "/markets/"+marketAddress+"/field_commitment", req, &resp); err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

func (c *HTTPClient) Balance(ctx context.Context, address string) (uint64, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+address+"/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}
