package dynamotest

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func TestUpdateItem_IfNotExistsIncrement(t *testing.T) {
	f := New()
	f.CreateTable("sessions", "userId", "productId")
	ctx := context.Background()

	in := &dyn.UpdateItemInput{
		TableName:        sdkaws.String("sessions"),
		Key:              map[string]types.AttributeValue{"userId": s("u1"), "productId": s("p1")},
		UpdateExpression: sdkaws.String("SET totalQuantity = if_not_exists(totalQuantity, :zero) + :qty, updatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": n("0"), ":qty": n("2"), ":now": s("t"),
		},
	}
	_, err := f.UpdateItem(ctx, in)
	require.NoError(t, err)
	_, err = f.UpdateItem(ctx, in)
	require.NoError(t, err)

	item := f.Get("sessions", "u1", "p1")
	require.NotNil(t, item)
	assert.Equal(t, "4", item["totalQuantity"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "u1", item["userId"].(*types.AttributeValueMemberS).Value)
}

func TestUpdateItem_ConditionFailure(t *testing.T) {
	f := New()
	f.CreateTable("products", "productId", "")
	require.NoError(t, f.Seed("products", map[string]interface{}{"productId": "p1", "stock": 3}))

	_, err := f.UpdateItem(context.Background(), &dyn.UpdateItemInput{
		TableName:                 sdkaws.String("products"),
		Key:                       map[string]types.AttributeValue{"productId": s("p1")},
		UpdateExpression:          sdkaws.String("SET stock = :new"),
		ConditionExpression:       sdkaws.String("attribute_exists(productId) AND stock >= :min"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":new": n("0"), ":min": n("5")},
	})
	var ccf *types.ConditionalCheckFailedException
	require.ErrorAs(t, err, &ccf)
	assert.Equal(t, "3", f.Get("products", "p1")["stock"].(*types.AttributeValueMemberN).Value)
}

func TestPutItem_NotExistsGuard(t *testing.T) {
	f := New()
	f.CreateTable("orders", "orderId", "")
	put := &dyn.PutItemInput{
		TableName:           sdkaws.String("orders"),
		Item:                map[string]types.AttributeValue{"orderId": s("o1")},
		ConditionExpression: sdkaws.String("attribute_not_exists(orderId)"),
	}
	_, err := f.PutItem(context.Background(), put)
	require.NoError(t, err)
	_, err = f.PutItem(context.Background(), put)
	var ccf *types.ConditionalCheckFailedException
	assert.ErrorAs(t, err, &ccf)
}

func TestTransactWriteItems_AllOrNothing(t *testing.T) {
	f := New()
	f.CreateTable("products", "productId", "")
	f.CreateTable("orders", "orderId", "")
	require.NoError(t, f.Seed("products", map[string]interface{}{"productId": "p1", "stock": 1}))

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName: sdkaws.String("orders"),
				Item:      map[string]types.AttributeValue{"orderId": s("o1")},
			}},
			{Update: &types.Update{
				TableName:                 sdkaws.String("products"),
				Key:                       map[string]types.AttributeValue{"productId": s("p1")},
				UpdateExpression:          sdkaws.String("SET stock = :new"),
				ConditionExpression:       sdkaws.String("stock >= :min"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":new": n("0"), ":min": n("2")},
			}},
		},
	})
	var tce *types.TransactionCanceledException
	require.ErrorAs(t, err, &tce)
	require.Len(t, tce.CancellationReasons, 2)
	assert.Equal(t, "None", sdkaws.ToString(tce.CancellationReasons[0].Code))
	assert.Equal(t, "ConditionalCheckFailed", sdkaws.ToString(tce.CancellationReasons[1].Code))
	assert.Equal(t, 0, f.Len("orders"))
}

func TestFailNext(t *testing.T) {
	f := New()
	f.CreateTable("orders", "orderId", "")
	boom := errors.New("boom")
	f.FailNext("GetItem", "orders", boom)

	key := map[string]types.AttributeValue{"orderId": s("o1")}
	_, err := f.GetItem(context.Background(), &dyn.GetItemInput{TableName: sdkaws.String("orders"), Key: key})
	assert.ErrorIs(t, err, boom)

	out, err := f.GetItem(context.Background(), &dyn.GetItemInput{TableName: sdkaws.String("orders"), Key: key})
	require.NoError(t, err)
	assert.Empty(t, out.Item)
	assert.Equal(t, 2, f.Calls("GetItem", "orders"))
}
