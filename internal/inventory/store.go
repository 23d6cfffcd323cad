package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
)

// ErrConditionFailed means stock fell below the required minimum, or the
// product vanished, between the read and the write.
var ErrConditionFailed = errors.New("stock condition failed")

// DecrementCondition guards every stock write. Stock observed at validation
// time is passed as :min, so any concurrent decrement rejects this one.
const DecrementCondition = "attribute_exists(productId) AND stock >= :min"

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new inventory Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       Key(productID),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// ConditionalDecrement sets stock to newStock only if the current stock is
// still at least requiredMinStock. Returns ErrConditionFailed otherwise.
func (s *Store) ConditionalDecrement(ctx context.Context, productID string, newStock, requiredMinStock int) error {
	_, err := s.client.UpdateItem(ctx, DecrementUpdate(s.tableName, productID, newStock, requiredMinStock))
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrConditionFailed
		}
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

// DecrementUpdate builds the guarded stock update, shared by the single-item
// write and the transactional commit.
func DecrementUpdate(tableName, productID string, newStock, requiredMinStock int) *dyn.UpdateItemInput {
	return &dyn.UpdateItemInput{
		TableName:           &tableName,
		Key:                 Key(productID),
		UpdateExpression:    awsString("SET stock = :new"),
		ConditionExpression: awsString(DecrementCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberN{Value: strconv.Itoa(newStock)},
			":min": &types.AttributeValueMemberN{Value: strconv.Itoa(requiredMinStock)},
		},
	}
}

// Key is the primary key of a product item.
func Key(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"productId": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }
