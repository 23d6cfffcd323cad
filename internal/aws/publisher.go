package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ErrNoTopic is returned when a message has no destination.
var ErrNoTopic = errors.New("empty topic")

// Message is one fire-and-forget publication. Topic is an SNS topic ARN for
// SNSPublisher and a queue URL for SQSPublisher. Subject is ignored by SQS.
type Message struct {
	Topic      string
	Subject    string
	Body       []byte
	Attributes map[string]string
}

// Publisher publishes messages to the event or notification bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// SNSPublisher wraps an SNS client.
type SNSPublisher struct {
	SNS SNSAPI
}

// NewSNSPublisher returns a Publisher backed by SNS topics.
func NewSNSPublisher(client SNSAPI) *SNSPublisher {
	return &SNSPublisher{SNS: client}
}

// Publish sends msg to the SNS topic ARN in msg.Topic.
func (p *SNSPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return ErrNoTopic
	}
	input := &sns.PublishInput{
		TopicArn: awsString(msg.Topic),
		Message:  awsString(string(msg.Body)),
	}
	if msg.Subject != "" {
		input.Subject = awsString(msg.Subject)
	}
	if len(msg.Attributes) > 0 {
		attrs := make(map[string]snstypes.MessageAttributeValue, len(msg.Attributes))
		for k, v := range msg.Attributes {
			attrs[k] = snstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = attrs
	}

	if _, err := p.SNS.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// SQSPublisher wraps an SQS client. Topic is the queue URL.
type SQSPublisher struct {
	SQS SQSAPI
}

// NewSQSPublisher returns a Publisher backed by SQS queues.
func NewSQSPublisher(client SQSAPI) *SQSPublisher {
	return &SQSPublisher{SQS: client}
}

// Publish sends msg.Body to the queue at msg.Topic. Attributes are sent as
// string MessageAttributes.
func (p *SQSPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return ErrNoTopic
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    awsString(msg.Topic),
		MessageBody: awsString(string(msg.Body)),
	}
	if len(msg.Attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range msg.Attributes {
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
