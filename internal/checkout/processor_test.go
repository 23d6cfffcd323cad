package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/apperrors"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/downstream"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/dynamotest"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

const ordersTable = "Orders"

type stubReserver struct {
	err   error
	calls int
}

func (s *stubReserver) Reserve(context.Context, string, []orders.LineItem) error {
	s.calls++
	return s.err
}

type stubPayer struct {
	res   *downstream.PaymentResult
	err   error
	calls int
}

func (s *stubPayer) Process(context.Context, downstream.PaymentRequest) (*downstream.PaymentResult, error) {
	s.calls++
	return s.res, s.err
}

type recordingSender struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (s *recordingSender) Send(_ context.Context, _ string, msg string) (downstream.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return downstream.Receipt{StatusCode: http.StatusOK}, s.err
}

type stubPublisher struct {
	err  error
	msgs []aws.Message
}

func (s *stubPublisher) Publish(_ context.Context, m aws.Message) error {
	s.msgs = append(s.msgs, m)
	return s.err
}

type harness struct {
	fake      *dynamotest.Fake
	reserver  *stubReserver
	payer     *stubPayer
	sender    *recordingSender
	publisher *stubPublisher
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := dynamotest.New()
	f.CreateTable(ordersTable, "orderId", "")
	h := &harness{
		fake:      f,
		reserver:  &stubReserver{},
		payer:     &stubPayer{res: &downstream.PaymentResult{Success: true, TransactionID: "tx"}},
		sender:    &recordingSender{},
		publisher: &stubPublisher{},
	}
	h.deps = Deps{
		Inventory:  h.reserver,
		Payments:   h.payer,
		Notifier:   h.sender,
		Orders:     orders.NewStore(f, ordersTable),
		Publisher:  h.publisher,
		EventTopic: "arn:aws:sns:us-east-1:123:orders",
		Logger:     zap.NewNop(),
	}
	return h
}

func (h *harness) order(t *testing.T, id string) *orders.Order {
	t.Helper()
	o, err := orders.NewStore(h.fake, ordersTable).Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func validRequest() validation.ProcessOrderRequest {
	return validation.ProcessOrderRequest{
		OrderID:       "order-1",
		UserID:        "user-1",
		Items:         []orders.LineItem{{ProductID: "p1", Quantity: 2, Price: 10}},
		TotalAmount:   20,
		PaymentMethod: "card",
	}
}

func TestProcess_Success(t *testing.T) {
	h := newHarness(t)
	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, &Result{OrderID: "order-1", State: StateSucceeded}, res)

	o := h.order(t, "order-1")
	require.NotNil(t, o)
	assert.Equal(t, orders.StatusProcessed, o.OrderStatus)
	assert.Equal(t, orders.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, 20.0, o.TotalAmount)

	require.Len(t, h.publisher.msgs, 1)
	var ev map[string]string
	require.NoError(t, json.Unmarshal(h.publisher.msgs[0].Body, &ev))
	assert.Equal(t, map[string]string{"orderId": "order-1", "userId": "user-1", "orderStatus": "Processed"}, ev)
	assert.Equal(t, "Processed", h.publisher.msgs[0].Attributes["orderStatus"])
	assert.Equal(t, []string{"Your order order-1 has been successfully processed."}, h.sender.sent)
}

func TestProcess_GeneratesMissingOrderID(t *testing.T) {
	h := newHarness(t)
	p := NewProcessor(h.deps)
	p.newID = func() string { return "generated-1" }

	req := validRequest()
	req.OrderID = ""
	res, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "generated-1", res.OrderID)
	assert.NotNil(t, h.order(t, "generated-1"))
}

func TestProcess_ValidationFailure_NoDownstreamCalls(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.Items = nil

	res, err := NewProcessor(h.deps).Process(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, StateValidating, res.FailedStage)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Zero(t, h.reserver.calls)
	assert.Zero(t, h.payer.calls)
	assert.Empty(t, h.publisher.msgs)

	o := h.order(t, "order-1")
	require.NotNil(t, o)
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Equal(t, string(StateValidating), o.FailedStage)
	assert.Equal(t, []string{"Your order order-1 failed to process."}, h.sender.sent)
}

func TestProcess_ReserveFailure(t *testing.T) {
	h := newHarness(t)
	h.reserver.err = &downstream.StatusError{Service: "inventory", StatusCode: http.StatusConflict}

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateReservingInventory, res.FailedStage)
	assert.Zero(t, h.payer.calls)

	o := h.order(t, "order-1")
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Empty(t, o.PaymentStatus)
}

func TestProcess_PaymentDeclined(t *testing.T) {
	h := newHarness(t)
	h.payer.res = &downstream.PaymentResult{Success: false, Message: "insufficient funds"}

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, StateProcessingPayment, res.FailedStage)

	o := h.order(t, "order-1")
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Equal(t, string(StateProcessingPayment), o.FailedStage)

	// a failed order never carries reservation state
	item := h.fake.Get(ordersTable, "order-1")
	for name := range item {
		assert.NotContains(t, []string{"reserved", "reservation", "reservationId"}, name)
	}
}

func TestProcess_PaymentTransportError(t *testing.T) {
	h := newHarness(t)
	reserveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer reserveSrv.Close()
	paymentSrv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	paymentURL := paymentSrv.URL
	paymentSrv.Close()

	h.deps.Inventory = downstream.NewInventoryClient(reserveSrv.URL, downstream.Options{})
	h.deps.Payments = downstream.NewPaymentClient(paymentURL, "", downstream.Options{})

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StateProcessingPayment, res.FailedStage)
	assert.Equal(t, apperrors.KindDownstream, apperrors.KindOf(err))

	o := h.order(t, "order-1")
	require.NotNil(t, o)
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Empty(t, h.publisher.msgs)
}

func TestProcess_PublishFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("sns down")

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StatePublishing, res.FailedStage)

	o := h.order(t, "order-1")
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Equal(t, string(StatePublishing), o.FailedStage)
	assert.Equal(t, orders.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, 1, h.fake.Calls("UpdateItem", ordersTable))
	assert.Equal(t, []string{"Your order order-1 failed to process."}, h.sender.sent)
}

func TestProcess_PublishFailureFallsBackToUpsert(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("sns down")
	h.fake.FailNext("UpdateItem", ordersTable, errors.New("throttled"))

	_, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)

	o := h.order(t, "order-1")
	assert.Equal(t, orders.StatusFailed, o.OrderStatus)
	assert.Equal(t, string(StatePublishing), o.FailedStage)
	assert.Equal(t, 2, h.fake.Calls("UpdateItem", ordersTable))
}

func TestProcess_PersistFailureCompensates(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext("PutItem", ordersTable, errors.New("throttled"))

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StatePersisting, res.FailedStage)
	assert.Equal(t, orders.StatusFailed, h.order(t, "order-1").OrderStatus)
}

func TestProcess_NotifyFailureStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("notification service down")

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, orders.StatusProcessed, h.order(t, "order-1").OrderStatus)
}

func TestProcess_CompensationErrorsAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.reserver.err = errors.New("boom")
	h.sender.err = errors.New("down")
	h.fake.FailNext("UpdateItem", ordersTable, errors.New("throttled"))

	res, err := NewProcessor(h.deps).Process(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StateReservingInventory, res.FailedStage)
	assert.Nil(t, h.order(t, "order-1"))
}
