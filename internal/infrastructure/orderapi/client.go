package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/httpclient"
)

// SessionHeader carries the storefront session the order belongs to.
const SessionHeader = "X-Session-ID"

// Doer is satisfied by httpclient.Client and httpclient.CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client creates orders on a remote order service. Each CreateOrder call sends
// exactly one request.
type Client struct {
	http    Doer
	baseURL string
}

func NewClient(doer Doer, baseURL string) *Client {
	return &Client{http: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

type envelope struct {
	Data *domain.CommitResult `json:"data"`
}

func (c *Client) CreateOrder(ctx context.Context, customerID string, draft *domain.OrderDraft) (*domain.CommitResult, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshal order draft: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, customerID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if httpclient.IsClientError(resp.StatusCode) {
		return rejected(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ReadError(resp, "order service")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	// accept both the bare result and our {"data": ...} envelope
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return env.Data, nil
	}
	var res domain.CommitResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &res, nil
}

// rejected turns a 4xx answer into an unsuccessful CommitResult so the caller
// can show the service's own message.
func rejected(resp *http.Response) (*domain.CommitResult, error) {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var res domain.CommitResult
	if json.Unmarshal(body, &res) == nil && res.Message != "" {
		res.Success = false
		return &res, nil
	}
	var eb httpclient.ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != nil {
		return &domain.CommitResult{Message: eb.Error.Message}, nil
	}
	return &domain.CommitResult{Message: fmt.Sprintf("order service rejected the order (status %d)", resp.StatusCode)}, nil
}
