package orders

import "time"

// Order statuses
const (
	StatusProcessed = "Processed"
	StatusFailed    = "Failed"

	PaymentStatusPaid = "Paid"
)

// LineItem is one ordered product.
type LineItem struct {
	ProductID string  `json:"productId" dynamodbav:"productId"`
	Quantity  int     `json:"quantity" dynamodbav:"quantity"`
	Price     float64 `json:"price" dynamodbav:"price"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID       string     `dynamodbav:"orderId"` // PK
	UserID        string     `dynamodbav:"userId,omitempty"`
	Items         []LineItem `dynamodbav:"items,omitempty"`
	TotalAmount   float64    `dynamodbav:"totalAmount,omitempty"`
	PaymentMethod string     `dynamodbav:"paymentMethod,omitempty"`
	PaymentStatus string     `dynamodbav:"paymentStatus,omitempty"`
	OrderStatus   string     `dynamodbav:"orderStatus"` // Processed | Failed
	FailedStage   string     `dynamodbav:"failedStage,omitempty"`
	FailureReason string     `dynamodbav:"failureReason,omitempty"`
	CreatedAt     time.Time  `dynamodbav:"createdAt"`
	UpdatedAt     time.Time  `dynamodbav:"updatedAt"`
}

// StatusChange is a conditional orderStatus transition.
type StatusChange struct {
	From   string
	To     string
	Stage  string
	Reason string
}
