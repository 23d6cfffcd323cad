package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

type mockSQS struct {
	inputs []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

func TestSNSPublisher_Publish(t *testing.T) {
	client := &mockSNS{}
	p := NewSNSPublisher(client)

	err := p.Publish(context.Background(), Message{
		Topic:      "arn:aws:sns:us-east-1:000000000000:flash-sale",
		Subject:    "Flash Sale Purchase Confirmation",
		Body:       []byte("hello"),
		Attributes: map[string]string{"userId": "u1"},
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:flash-sale", *in.TopicArn)
	assert.Equal(t, "hello", *in.Message)
	assert.Equal(t, "Flash Sale Purchase Confirmation", *in.Subject)
	assert.Equal(t, "u1", *in.MessageAttributes["userId"].StringValue)
	assert.Equal(t, "String", *in.MessageAttributes["userId"].DataType)
}

func TestSNSPublisher_EmptyTopic(t *testing.T) {
	client := &mockSNS{}
	err := NewSNSPublisher(client).Publish(context.Background(), Message{Body: []byte("x")})
	assert.ErrorIs(t, err, ErrNoTopic)
	assert.Empty(t, client.inputs)
}

func TestSNSPublisher_WrapsClientError(t *testing.T) {
	boom := errors.New("throttled")
	client := &mockSNS{err: boom}
	err := NewSNSPublisher(client).Publish(context.Background(), Message{Topic: "t", Body: []byte("x")})
	assert.ErrorIs(t, err, boom)
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := &mockSQS{}
	p := NewSQSPublisher(client)

	err := p.Publish(context.Background(), Message{
		Topic:      "https://sqs.us-east-1.amazonaws.com/000000000000/order-events",
		Subject:    "ignored",
		Body:       []byte(`{"orderId":"o1"}`),
		Attributes: map[string]string{"orderStatus": "Processed"},
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Equal(t, `{"orderId":"o1"}`, *client.inputs[0].MessageBody)
	assert.Equal(t, "Processed", *client.inputs[0].MessageAttributes["orderStatus"].StringValue)
}
