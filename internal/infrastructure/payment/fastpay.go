package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"storefront-checkout/internal/httpclient"
)

// returnCodePaid is the only return_code FastPay uses for a settled payment.
const returnCodePaid = 1

type statusResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// Doer is satisfied by httpclient.Client and httpclient.CircuitBreakerClient.
type Doer interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// FastPayClient queries FastPay for the status of a transaction.
type FastPayClient struct {
	http    Doer
	baseURL string
}

func NewFastPayClient(doer Doer, baseURL string) *FastPayClient {
	return &FastPayClient{http: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// CheckStatus makes a single request. Any transport, HTTP or decoding problem is
// returned as an error because the payment state is then unknown.
func (c *FastPayClient) CheckStatus(ctx context.Context, transactionID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/transactions/%s/status", c.baseURL, url.PathEscape(transactionID))

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return false, fmt.Errorf("fastpay status %s: %w", transactionID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, httpclient.ReadError(resp, "fastpay")
	}
	defer func() { _ = resp.Body.Close() }()

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return false, fmt.Errorf("decode fastpay status: %w", err)
	}
	return body.ReturnCode == returnCodePaid, nil
}
