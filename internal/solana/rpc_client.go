package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements SupplyClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ SupplyClient = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type commitmentConfig struct {
	Commitment string `json:"commitment"`
}

// getTokenSupplyResponse is the JSON-RPC envelope of getTokenSupply.
type getTokenSupplyResponse struct {
	Result *struct {
		Value *struct {
			Amount   string `json:"amount"`
			Decimals int    `json:"decimals"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// retryable marks failures worth another attempt: transport errors,
// throttling and non-200 statuses.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// GetTokenSupply returns the current supply of mint. The UI amount is derived
// from the raw integer amount so large supplies keep full precision.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	if err := ValidateAddress(mint); err != nil {
		return nil, err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "getTokenSupply",
		Params:  []interface{}{mint, commitmentConfig{Commitment: "confirmed"}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp getTokenSupplyResponse
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		resp = getTokenSupplyResponse{}
		err = c.post(ctx, body, &resp)
		var retry retryable
		if err == nil || !errors.As(err, &retry) {
			break
		}
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("max retries exceeded: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(time.Duration(float64(delay)*c.backoffMult), c.maxDelay)
	}
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil || resp.Result.Value == nil {
		return nil, fmt.Errorf("token supply missing for %s", mint)
	}

	v := resp.Result.Value
	raw, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse supply amount %q: %w", v.Amount, err)
	}
	ui, _ := raw.Shift(-int32(v.Decimals)).Float64()

	return &TokenSupply{
		Amount:   v.Amount,
		Decimals: v.Decimals,
		UIAmount: ui,
	}, nil
}

// post sends one request and decodes the reply into out.
func (c *HTTPClient) post(ctx context.Context, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retryable{fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryable{errors.New("rate limited (429)")}
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retryable{fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retryable{fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
