package flashsale

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
)

const confirmationSubject = "Flash Sale Purchase Confirmation"

// Notifier tells the buyer a purchase went through. A failure never undoes
// the purchase.
type Notifier interface {
	NotifyPurchase(ctx context.Context, userID, productID string, quantity int) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyPurchase(context.Context, string, string, int) error { return nil }

// BusNotifier publishes confirmations to the notification topic.
type BusNotifier struct {
	publisher aws.Publisher
	topic     string
}

// NewBusNotifier returns a Notifier publishing to topic. With no topic
// configured it returns NopNotifier.
func NewBusNotifier(publisher aws.Publisher, topic string) Notifier {
	if publisher == nil || topic == "" {
		return NopNotifier{}
	}
	return &BusNotifier{publisher: publisher, topic: topic}
}

func (n *BusNotifier) NotifyPurchase(ctx context.Context, userID, productID string, quantity int) error {
	return n.publisher.Publish(ctx, aws.Message{
		Topic:      n.topic,
		Subject:    confirmationSubject,
		Body:       []byte(ConfirmationMessage(productID, quantity)),
		Attributes: map[string]string{"userId": userID},
	})
}

// ConfirmationMessage is the text sent to the buyer.
func ConfirmationMessage(productID string, quantity int) string {
	return fmt.Sprintf("Your purchase of %d items of Product ID: %s has been successful!", quantity, productID)
}
