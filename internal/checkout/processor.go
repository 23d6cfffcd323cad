// Package checkout runs the order-processing saga: validate, reserve
// inventory, charge payment, persist, publish and notify, with local
// compensation when a required step fails.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/apperrors"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/downstream"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/metrics"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

// ErrPaymentDeclined is the cause recorded when the payment service answers
// success=false.
var ErrPaymentDeclined = errors.New("payment declined")

type (
	// Reserver holds stock for an order.
	Reserver interface {
		Reserve(ctx context.Context, orderID string, items []orders.LineItem) error
	}
	// Payer charges an order.
	Payer interface {
		Process(ctx context.Context, req downstream.PaymentRequest) (*downstream.PaymentResult, error)
	}
	// Sender delivers a user notification.
	Sender interface {
		Send(ctx context.Context, userID, message string) (downstream.Receipt, error)
	}
	// OrderStore persists order records.
	OrderStore interface {
		Put(ctx context.Context, order orders.Order) error
		UpdateStatus(ctx context.Context, orderID string, change orders.StatusChange) error
		MarkFailed(ctx context.Context, orderID, userID, stage, reason string) error
	}
)

// Deps groups the collaborators of a Processor.
type Deps struct {
	Inventory  Reserver
	Payments   Payer
	Notifier   Sender
	Orders     OrderStore
	Publisher  aws.Publisher
	EventTopic string
	Validator  *validatorv10.Validate
	Metrics    metrics.Recorder
	Logger     *zap.Logger
}

// Result is the outcome of one saga run.
type Result struct {
	OrderID     string
	State       State
	FailedStage State
}

// Processor runs checkouts. It holds no per-request state.
type Processor struct {
	deps    Deps
	newID   func() string
	nowFunc func() time.Time
}

// NewProcessor returns a Processor. Nil validator, recorder or logger get
// defaults.
func NewProcessor(d Deps) *Processor {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Processor{deps: d, newID: uuid.NewString, nowFunc: time.Now}
}

// run carries one order through the saga.
type run struct {
	req       validation.ProcessOrderRequest
	log       *zap.Logger
	state     State
	persisted bool
}

// Process runs the saga for req. The returned Result always carries the
// order id; err is non-nil when the saga ended in StateFailed.
func (p *Processor) Process(ctx context.Context, req validation.ProcessOrderRequest) (*Result, error) {
	start := p.nowFunc()
	if req.OrderID == "" {
		req.OrderID = p.newID()
	}
	r := &run{
		req:   req,
		log:   p.deps.Logger.With(zap.String("orderId", req.OrderID), zap.String("userId", req.UserID)),
		state: StateValidating,
	}

	var failure error
	for !r.state.Terminal() {
		r.log.Debug("checkout stage", zap.String("stage", string(r.state)))
		if err := p.step(ctx, r); err != nil {
			failure = err
			break
		}
		r.state = next[r.state]
	}

	p.deps.Metrics.Latency(ctx, metrics.OrderLatency, p.nowFunc().Sub(start), nil)
	if failure == nil {
		p.deps.Metrics.Count(ctx, metrics.OrdersProcessed, nil)
		r.log.Info("order processed")
		return &Result{OrderID: req.OrderID, State: StateSucceeded}, nil
	}

	failedStage := r.state
	r.state = StateFailed
	p.deps.Metrics.Count(ctx, metrics.OrdersFailed, map[string]string{"stage": string(failedStage)})
	r.log.Error("order processing failed", zap.String("stage", string(failedStage)), zap.Error(failure))
	p.compensate(ctx, r, failedStage, failure)

	return &Result{OrderID: req.OrderID, State: StateFailed, FailedStage: failedStage}, failure
}

func (p *Processor) step(ctx context.Context, r *run) error {
	req := r.req
	switch r.state {
	case StateValidating:
		if err := p.deps.Validator.Struct(req); err != nil {
			return apperrors.Validation(fmt.Sprintf("invalid order: %v", validation.FieldErrors(err)))
		}

	case StateReservingInventory:
		if err := p.deps.Inventory.Reserve(ctx, req.OrderID, req.Items); err != nil {
			return apperrors.Downstream("failed to reserve inventory", err)
		}

	case StateProcessingPayment:
		res, err := p.deps.Payments.Process(ctx, downstream.PaymentRequest{
			OrderID:       req.OrderID,
			Amount:        req.TotalAmount,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			return apperrors.Downstream("payment processing failed", err)
		}
		if !res.Success {
			return apperrors.Downstream("payment failed", fmt.Errorf("%w: %s", ErrPaymentDeclined, res.Message))
		}

	case StatePersisting:
		err := p.deps.Orders.Put(ctx, orders.Order{
			OrderID:       req.OrderID,
			UserID:        req.UserID,
			Items:         req.Items,
			TotalAmount:   req.TotalAmount,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: orders.PaymentStatusPaid,
			OrderStatus:   orders.StatusProcessed,
		})
		if err != nil {
			return apperrors.Internal("save order", err)
		}
		r.persisted = true

	case StatePublishing:
		if err := p.publish(ctx, req); err != nil {
			return apperrors.Downstream("publish order event", err)
		}

	case StateNotifying:
		// best effort: the order is already committed
		msg := fmt.Sprintf("Your order %s has been successfully processed.", req.OrderID)
		if _, err := p.deps.Notifier.Send(ctx, req.UserID, msg); err != nil {
			r.log.Warn("order confirmation not sent", zap.Error(err))
		}
	}
	return nil
}

type orderEvent struct {
	OrderID     string `json:"orderId"`
	UserID      string `json:"userId"`
	OrderStatus string `json:"orderStatus"`
}

func (p *Processor) publish(ctx context.Context, req validation.ProcessOrderRequest) error {
	body, err := json.Marshal(orderEvent{OrderID: req.OrderID, UserID: req.UserID, OrderStatus: orders.StatusProcessed})
	if err != nil {
		return err
	}
	return p.deps.Publisher.Publish(ctx, aws.Message{
		Topic:      p.deps.EventTopic,
		Body:       body,
		Attributes: map[string]string{"orderStatus": orders.StatusProcessed},
	})
}

// compensate records the failure locally and tells the user. Reservations
// and charges made by earlier steps are not reverted.
func (p *Processor) compensate(ctx context.Context, r *run, stage State, cause error) {
	req := r.req
	if !p.failPersisted(ctx, r, stage, cause) {
		if err := p.deps.Orders.MarkFailed(ctx, req.OrderID, req.UserID, string(stage), cause.Error()); err != nil {
			r.log.Error("could not mark order failed", zap.Error(err))
		}
	}
	if req.UserID == "" {
		return
	}
	msg := fmt.Sprintf("Your order %s failed to process.", req.OrderID)
	if _, err := p.deps.Notifier.Send(ctx, req.UserID, msg); err != nil {
		r.log.Warn("failure notification not sent", zap.Error(err))
	}
}

// failPersisted moves an order this run saved as Processed to Failed. It
// reports false when the order was not saved or the transition did not
// apply, leaving the upsert to the caller.
func (p *Processor) failPersisted(ctx context.Context, r *run, stage State, cause error) bool {
	if !r.persisted {
		return false
	}
	err := p.deps.Orders.UpdateStatus(ctx, r.req.OrderID, orders.StatusChange{
		From:   orders.StatusProcessed,
		To:     orders.StatusFailed,
		Stage:  string(stage),
		Reason: cause.Error(),
	})
	if err != nil {
		r.log.Warn("processed order not transitioned to failed", zap.Error(err))
		return false
	}
	return true
}
