package purchases

// Flash-sale order statuses.
const (
	StatusPending = "PENDING"
)

// Purchase is the running per-user, per-product total in the user-session
// table.
type Purchase struct {
	UserID        string `dynamodbav:"userId"`    // PK
	ProductID     string `dynamodbav:"productId"` // SK
	TotalQuantity int    `dynamodbav:"totalQuantity"`
	UpdatedAt     string `dynamodbav:"updatedAt,omitempty"`
}

// FlashSaleOrder is written once per successful purchase.
type FlashSaleOrder struct {
	OrderID   string `dynamodbav:"orderId"` // PK
	UserID    string `dynamodbav:"userId"`
	ProductID string `dynamodbav:"productId"`
	Quantity  int    `dynamodbav:"quantity"`
	CreatedAt string `dynamodbav:"createdAt"` // RFC3339
	Status    string `dynamodbav:"status"`
}

// Commit is the full set of writes for one purchase when they are applied
// as a single transaction.
type Commit struct {
	ProductTable     string
	ProductID        string
	NewStock         int
	MinStock         int
	Order            FlashSaleOrder
	MaxPurchaseLimit int
}
