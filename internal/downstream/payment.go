package downstream

import (
	"context"
	"encoding/json"
	"fmt"
)

// PaymentRequest is the body of POST /process.
type PaymentRequest struct {
	OrderID       string  `json:"orderId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
}

// PaymentResult is the service's verdict. Success=false is a decline.
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// PaymentClient calls the payment service.
type PaymentClient struct {
	caller
}

// NewPaymentClient creates a new PaymentClient. apiKey is sent as x-api-key
// when non-empty.
func NewPaymentClient(baseURL, apiKey string, opts Options) *PaymentClient {
	c := newCaller("payment", baseURL, opts)
	if apiKey != "" {
		c.headers = map[string]string{"x-api-key": apiKey}
	}
	return &PaymentClient{caller: c}
}

// Process charges the order.
func (c *PaymentClient) Process(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	_, raw, err := c.postJSON(ctx, "/process", req)
	if err != nil {
		return nil, err
	}
	var res PaymentResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &res, nil
}
