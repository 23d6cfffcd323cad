package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
)

// ErrStatusMismatch is returned by UpdateStatus when the current status is
// not the expected one.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes the order, replacing any previous version.
func (s *Store) Put(ctx context.Context, order Order) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// Get fetches an order by orderId. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus moves the order from change.From to change.To. Stage and
// Reason are written when set. Returns ErrStatusMismatch when the order is
// missing or not in change.From.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, change StatusChange) error {
	expr := "SET #s = :new, updatedAt = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: change.To},
		":expected": &types.AttributeValueMemberS{Value: change.From},
		":ua":       &types.AttributeValueMemberS{Value: s.timestamp()},
	}
	if change.Stage != "" {
		expr += ", failedStage = :stage"
		values[":stage"] = &types.AttributeValueMemberS{Value: change.Stage}
	}
	if change.Reason != "" {
		expr += ", failureReason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: change.Reason}
	}

	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(orderID),
		UpdateExpression:          awsString(expr),
		ConditionExpression:       awsString("#s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "orderStatus"},
		ExpressionAttributeValues: values,
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// MarkFailed sets orderStatus to Failed together with the stage that failed
// and why. The record is created when it does not exist yet; userId and
// createdAt are only written if absent. Inventory state is never touched.
func (s *Store) MarkFailed(ctx context.Context, orderID, userID, stage, reason string) error {
	now := s.timestamp()
	expr := "SET orderStatus = :failed, failedStage = :stage, failureReason = :reason, updatedAt = :now, createdAt = if_not_exists(createdAt, :now)"
	values := map[string]types.AttributeValue{
		":failed": &types.AttributeValueMemberS{Value: StatusFailed},
		":stage":  &types.AttributeValueMemberS{Value: stage},
		":reason": &types.AttributeValueMemberS{Value: reason},
		":now":    &types.AttributeValueMemberS{Value: now},
	}
	if userID != "" {
		expr += ", userId = if_not_exists(userId, :uid)"
		values[":uid"] = &types.AttributeValueMemberS{Value: userID}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(orderID),
		UpdateExpression:          awsString(expr),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.nowFunc().UTC().Format(time.RFC3339Nano)
}

func key(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"orderId": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
