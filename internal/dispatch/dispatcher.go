// Package dispatch drains the notification queue and delivers each message
// to the notification service once, using the idempotency table to drop
// redeliveries.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/downstream"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/metrics"
)

const maxStoredResponse = 1024

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, userID, message string) (downstream.Receipt, error)
}

// Ledger is the idempotency store.
type Ledger interface {
	CreateIfNotExists(ctx context.Context, key, userID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	Reclaim(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Dispatcher handles SQS batches.
type Dispatcher struct {
	ledger  Ledger
	sender  Sender
	metrics metrics.Recorder
	logger  *zap.Logger
}

// New returns a Dispatcher.
func New(ledger Ledger, sender Sender, rec metrics.Recorder, logger *zap.Logger) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{ledger: ledger, sender: sender, metrics: rec, logger: logger}
}

// Handle processes every record and reports the ones to redeliver. It never
// returns an error so that successful records are not redelivered with the
// failed ones.
func (d *Dispatcher) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := d.handleRecord(ctx, rec); err != nil {
			d.logger.Error("notification not delivered", zap.String("sqsMessageId", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (d *Dispatcher) handleRecord(ctx context.Context, rec events.SQSMessage) error {
	n, err := Decode(rec)
	if err != nil {
		d.metrics.Count(ctx, metrics.NotificationsFailed, map[string]string{"reason": "malformed"})
		return err
	}
	log := d.logger.With(zap.String("key", n.Key), zap.String("userId", n.UserID))

	proceed, err := d.claim(ctx, n)
	if err != nil {
		return err
	}
	if !proceed {
		d.metrics.Count(ctx, metrics.NotificationsDuplicate, nil)
		log.Info("duplicate notification skipped")
		return nil
	}

	receipt, err := d.sender.Send(ctx, n.UserID, n.Message)
	if err != nil {
		d.metrics.Count(ctx, metrics.NotificationsFailed, map[string]string{"reason": "delivery"})
		if markErr := d.ledger.MarkFailed(ctx, n.Key, err.Error()); markErr != nil {
			log.Error("could not mark notification failed", zap.Error(markErr))
		}
		return fmt.Errorf("deliver %s: %w", n.Key, err)
	}

	d.metrics.Count(ctx, metrics.NotificationsSent, nil)
	if err := d.ledger.MarkDone(ctx, n.Key, truncate(receipt.Body, maxStoredResponse), receipt.StatusCode); err != nil {
		// delivered already; a redelivery will see IN_PROGRESS and skip
		log.Warn("could not mark notification done", zap.Error(err))
	}
	log.Info("notification delivered", zap.Int("status", receipt.StatusCode))
	return nil
}

// claim reports whether this invocation owns delivery of n.
func (d *Dispatcher) claim(ctx context.Context, n Notification) (bool, error) {
	created, err := d.ledger.CreateIfNotExists(ctx, n.Key, n.UserID)
	if err != nil {
		return false, err
	}
	if created {
		return true, nil
	}

	rec, err := d.ledger.Get(ctx, n.Key)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, errors.New("idempotency record vanished")
	}
	switch rec.Status {
	case idempotency.StatusFailed:
		return d.ledger.Reclaim(ctx, n.Key)
	default:
		return false, nil
	}
}

// truncate cuts s to at most n bytes without splitting a rune. Invalid
// UTF-8 is dropped since DynamoDB rejects it in string attributes.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
