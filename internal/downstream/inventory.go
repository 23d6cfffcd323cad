package downstream

import (
	"context"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
)

// InventoryClient calls the inventory-reservation service.
type InventoryClient struct {
	caller
}

// NewInventoryClient creates a new InventoryClient.
func NewInventoryClient(baseURL string, opts Options) *InventoryClient {
	return &InventoryClient{caller: newCaller("inventory", baseURL, opts)}
}

type reserveRequest struct {
	OrderID string            `json:"orderId"`
	Items   []orders.LineItem `json:"items"`
}

// Reserve asks the service to hold stock for the order's items.
func (c *InventoryClient) Reserve(ctx context.Context, orderID string, items []orders.LineItem) error {
	_, _, err := c.postJSON(ctx, "/reserve", reserveRequest{OrderID: orderID, Items: items})
	return err
}
