package inventory

// Product is the item stored in the products table.
type Product struct {
	ProductID   string `dynamodbav:"productId"` // PK
	Stock       int    `dynamodbav:"stock"`
	OnFlashSale bool   `dynamodbav:"onFlashSale"`
}
