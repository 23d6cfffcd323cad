package purchases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/inventory"
)

var (
	// ErrQuotaConditionFailed means the user's total would pass the limit.
	ErrQuotaConditionFailed = errors.New("purchase quota condition failed")
	// ErrOrderExists means an order with the same id was already written.
	ErrOrderExists = errors.New("flash sale order already exists")
)

const (
	addQuantityExpr = "SET totalQuantity = if_not_exists(totalQuantity, :zero) + :qty, updatedAt = :now"
	quotaCondition  = "attribute_not_exists(totalQuantity) OR totalQuantity <= :remaining"
	orderCondition  = "attribute_not_exists(orderId)"
)

// Store encapsulates the user-session and flash-sale order tables.
type Store struct {
	client       aws.DynamoDBAPI
	sessionTable string
	orderTable   string
	nowFunc      func() time.Time
}

// NewStore creates a new purchases Store.
func NewStore(client aws.DynamoDBAPI, sessionTable, orderTable string) *Store {
	return &Store{
		client:       client,
		sessionTable: sessionTable,
		orderTable:   orderTable,
		nowFunc:      time.Now,
	}
}

// Get fetches the purchase record for a user and product. Returns (nil, nil)
// if the user has not bought the product yet.
func (s *Store) Get(ctx context.Context, userID, productID string) (*Purchase, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.sessionTable,
		Key:       purchaseKey(userID, productID),
	})
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Purchase
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal purchase: %w", err)
	}
	return &p, nil
}

// AddQuantity creates the record on first purchase and otherwise increments
// totalQuantity atomically. The increment is rejected with
// ErrQuotaConditionFailed when the new total would pass limit.
func (s *Store) AddQuantity(ctx context.Context, userID, productID string, delta, limit int) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.sessionTable,
		Key:                       purchaseKey(userID, productID),
		UpdateExpression:          awsString(addQuantityExpr),
		ConditionExpression:       awsString(quotaCondition),
		ExpressionAttributeValues: s.quotaValues(delta, limit),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrQuotaConditionFailed
		}
		return fmt.Errorf("add quantity: %w", err)
	}
	return nil
}

// CreateOrder writes a flash-sale order once.
func (s *Store) CreateOrder(ctx context.Context, order FlashSaleOrder) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.orderTable,
		Item:                item,
		ConditionExpression: awsString(orderCondition),
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrOrderExists
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// CommitPurchase applies the stock decrement, the order write and the quota
// increment in one TransactWriteItems call. A cancelled transaction is
// mapped to inventory.ErrConditionFailed, ErrOrderExists or
// ErrQuotaConditionFailed depending on which guard failed.
func (s *Store) CommitPurchase(ctx context.Context, c Commit) error {
	orderItem, err := attributevalue.MarshalMap(c.Order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	dec := inventory.DecrementUpdate(c.ProductTable, c.ProductID, c.NewStock, c.MinStock)
	quotaValues := s.quotaValues(c.Order.Quantity, c.MaxPurchaseLimit)

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 dec.TableName,
					Key:                       dec.Key,
					UpdateExpression:          dec.UpdateExpression,
					ConditionExpression:       dec.ConditionExpression,
					ExpressionAttributeValues: dec.ExpressionAttributeValues,
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.orderTable,
					Item:                orderItem,
					ConditionExpression: awsString(orderCondition),
				},
			},
			{
				Update: &types.Update{
					TableName:                 &s.sessionTable,
					Key:                       purchaseKey(c.Order.UserID, c.ProductID),
					UpdateExpression:          awsString(addQuantityExpr),
					ConditionExpression:       awsString(quotaCondition),
					ExpressionAttributeValues: quotaValues,
				},
			},
		},
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return cancellationError(tce)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// cancellationError maps the first failed guard, in transact item order.
func cancellationError(tce *types.TransactionCanceledException) error {
	guards := []error{inventory.ErrConditionFailed, ErrOrderExists, ErrQuotaConditionFailed}
	for i, r := range tce.CancellationReasons {
		if i < len(guards) && r.Code != nil && *r.Code == "ConditionalCheckFailed" {
			return guards[i]
		}
	}
	return fmt.Errorf("transaction canceled: %w", tce)
}

func (s *Store) quotaValues(delta, limit int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":zero":      &types.AttributeValueMemberN{Value: "0"},
		":qty":       &types.AttributeValueMemberN{Value: strconv.Itoa(delta)},
		":remaining": &types.AttributeValueMemberN{Value: strconv.Itoa(limit - delta)},
		":now":       &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
	}
}

func purchaseKey(userID, productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"productId": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }
