package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FeeRelayer is the relay server surface the rest of the module depends on.
type FeeRelayer interface {
	// GetFeePayerPubkey returns the base-58 public key of the account the
	// server uses to pay network fees.
	GetFeePayerPubkey(ctx context.Context) (string, error)

	// GetFreeFeeLimits returns the free-transaction quota for an authority.
	GetFreeFeeLimits(ctx context.Context, authority string) (*FeeLimitForAuthorityResponse, error)

	// GetFeeTokenData returns the exchange rate and receiving account for a
	// token the relay accepts fees in.
	GetFeeTokenData(ctx context.Context, mint string) (*FeeTokenData, error)

	// SendTransaction submits a relay request and returns the resulting
	// transaction signature (or, for sign requests, the server signature).
	SendTransaction(ctx context.Context, request RequestType) (string, error)
}

// APIClient talks to a fee relayer deployment over HTTP.
type APIClient struct {
	baseURL string
	version int
	http    *http.Client
}

// NewAPIClient builds a client for the given deployment. version selects the
// /v{N} path prefix; version 1 keeps the bare base URL for compatibility with
// older deployments.
func NewAPIClient(baseURL string, version int) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *APIClient) url(path string) string {
	if c.version > 1 {
		return fmt.Sprintf("%s/v%d%s", c.baseURL, c.version, path)
	}
	return c.baseURL + path
}

func (c *APIClient) GetFeePayerPubkey(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/fee_payer/pubkey")
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

func (c *APIClient) GetFreeFeeLimits(ctx context.Context, authority string) (*FeeLimitForAuthorityResponse, error) {
	body, err := c.get(ctx, fmt.Sprintf("/free_fee_limits/%s", authority))
	if err != nil {
		return nil, err
	}
	var resp FeeLimitForAuthorityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding free fee limits: %w", err)
	}
	return &resp, nil
}

func (c *APIClient) GetFeeTokenData(ctx context.Context, mint string) (*FeeTokenData, error) {
	body, err := c.get(ctx, fmt.Sprintf("/fee_token_data/%s", mint))
	if err != nil {
		return nil, err
	}
	var data FeeTokenData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding fee token data: %w", err)
	}
	return &data, nil
}

func (c *APIClient) SendTransaction(ctx context.Context, request RequestType) (string, error) {
	payload, err := request.Body()
	if err != nil {
		return "", err
	}
	body, err := c.post(ctx, request.Path(), payload)
	if err != nil {
		return "", err
	}

	// sign_relay_transaction answers with a structured body; the other
	// endpoints answer with a bare signature string, sometimes wrapped in
	// brackets and quotes.
	if request.Path() == PathSignRelayTransaction {
		var resp SignRelayTransactionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding sign response: %w", err)
		}
		return resp.Signature, nil
	}

	signature := strings.TrimSpace(string(body))
	signature = strings.TrimPrefix(signature, "[")
	signature = strings.TrimSuffix(signature, "]")
	signature = strings.Trim(signature, `"`)
	return signature, nil
}

// SignRelayTransactionResponse is the body of a successful
// /sign_relay_transaction call.
type SignRelayTransactionResponse struct {
	Signature   string `json:"signature"`
	Transaction string `json:"transaction"`
}

func (c *APIClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *APIClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *APIClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("fee relayer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
