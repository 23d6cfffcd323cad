package validation

import "github.com/imrishuroy/go-flashsale-orderflow/internal/orders"

// PurchaseRequest is the payload for POST /flash-sale/purchase. A zero
// quantity counts as missing.
type PurchaseRequest struct {
	ProductID string `json:"productId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// ProcessOrderRequest is the payload for POST /orders/process.
type ProcessOrderRequest struct {
	OrderID       string            `json:"orderId"`
	UserID        string            `json:"userId" validate:"required"`
	Items         []orders.LineItem `json:"items" validate:"required,min=1"` // at least one item
	TotalAmount   float64           `json:"totalAmount" validate:"gte=0"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
}
