// Package flashsale implements flash-sale purchases: validation against live
// stock and the per-user quota, then a guarded stock decrement.
package flashsale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/apperrors"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/config"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/inventory"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/metrics"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/purchases"
)

// Messages returned to callers.
const (
	MsgMissingParams     = "Invalid request: missing parameters"
	MsgProductNotFound   = "Product not found"
	MsgNotOnFlashSale    = "Product is not on flash sale"
	MsgInsufficientStock = "Insufficient stock for the flash sale"
	MsgLimitReached      = "Purchase limit reached for this user"
	MsgSuccess           = "Flash sale purchase successful"
)

// Inventory is the product store used by the service.
type Inventory interface {
	Get(ctx context.Context, productID string) (*inventory.Product, error)
	ConditionalDecrement(ctx context.Context, productID string, newStock, requiredMinStock int) error
}

// Purchases is the user-session and order store used by the service.
type Purchases interface {
	Get(ctx context.Context, userID, productID string) (*purchases.Purchase, error)
	AddQuantity(ctx context.Context, userID, productID string, delta, limit int) error
	CreateOrder(ctx context.Context, order purchases.FlashSaleOrder) error
	CommitPurchase(ctx context.Context, c purchases.Commit) error
}

// Request is one purchase attempt.
type Request struct {
	ProductID string
	UserID    string
	Quantity  int
}

// Result describes a successful purchase.
type Result struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// Options tunes the service.
type Options struct {
	MaxPurchaseLimit int
	// AtomicCommit applies the stock, order and quota writes in one
	// transaction instead of three sequential writes.
	AtomicCommit bool
	ProductTable string
}

// Service handles flash-sale purchases.
type Service struct {
	inventory Inventory
	purchases Purchases
	notifier  Notifier
	metrics   metrics.Recorder
	logger    *zap.Logger
	opts      Options

	nowFunc func() time.Time
	newID   func() string
}

// NewService wires a Service. A nil notifier or recorder is replaced by a
// no-op.
func NewService(inv Inventory, purch Purchases, notifier Notifier, rec metrics.Recorder, logger *zap.Logger, opts Options) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPurchaseLimit <= 0 {
		opts.MaxPurchaseLimit = config.DefaultMaxPurchaseLimit
	}
	return &Service{
		inventory: inv,
		purchases: purch,
		notifier:  notifier,
		metrics:   rec,
		logger:    logger,
		opts:      opts,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Purchase validates req, then commits it. Errors are *apperrors.Error.
// Repeating a request buys again: there is no deduplication key.
func (s *Service) Purchase(ctx context.Context, req Request) (*Result, error) {
	start := s.nowFunc()
	log := s.logger.With(zap.String("productId", req.ProductID), zap.String("userId", req.UserID), zap.Int("quantity", req.Quantity))

	res, err := s.purchase(ctx, req, log)
	s.metrics.Latency(ctx, metrics.FlashSaleLatency, s.nowFunc().Sub(start), nil)
	if err != nil {
		kind := apperrors.KindOf(err)
		s.metrics.Count(ctx, metrics.FlashSaleRejected, map[string]string{"kind": kind.String()})
		if kind == apperrors.KindInternal {
			log.Error("flash sale purchase failed", zap.Error(err))
		} else {
			log.Info("flash sale purchase rejected", zap.String("kind", kind.String()), zap.Error(err))
		}
		return nil, err
	}
	s.metrics.Count(ctx, metrics.FlashSalePurchases, nil)
	log.Info("flash sale purchase committed", zap.String("orderId", res.OrderID))
	return res, nil
}

func (s *Service) purchase(ctx context.Context, req Request, log *zap.Logger) (*Result, error) {
	limit := s.opts.MaxPurchaseLimit

	if req.ProductID == "" || req.UserID == "" || req.Quantity == 0 {
		return nil, apperrors.Validation(MsgMissingParams)
	}
	if req.Quantity < 0 || req.Quantity > limit {
		return nil, apperrors.Quota(fmt.Sprintf("Purchase limit exceeded. Max allowed: %d", limit))
	}

	product, err := s.inventory.Get(ctx, req.ProductID)
	if err != nil {
		return nil, apperrors.Internal("load product", err)
	}
	if product == nil {
		return nil, apperrors.NotFound(MsgProductNotFound)
	}
	if !product.OnFlashSale {
		return nil, apperrors.State(MsgNotOnFlashSale)
	}
	if product.Stock < req.Quantity {
		return nil, apperrors.Stock(MsgInsufficientStock, nil)
	}

	existing, err := s.purchases.Get(ctx, req.UserID, req.ProductID)
	if err != nil {
		return nil, apperrors.Internal("load purchase record", err)
	}
	if existing != nil && existing.TotalQuantity+req.Quantity > limit {
		return nil, apperrors.Quota(MsgLimitReached)
	}

	order := purchases.FlashSaleOrder{
		OrderID:   s.newID(),
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		CreatedAt: s.nowFunc().UTC().Format(time.RFC3339),
		Status:    purchases.StatusPending,
	}
	newStock := product.Stock - req.Quantity

	if s.opts.AtomicCommit {
		err = s.commitAtomic(ctx, order, newStock, product.Stock)
	} else {
		err = s.commitSequential(ctx, order, newStock, product.Stock, log)
	}
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyPurchase(ctx, req.UserID, req.ProductID, req.Quantity); err != nil {
		log.Warn("purchase confirmation not sent", zap.String("orderId", order.OrderID), zap.Error(err))
	}

	return &Result{OrderID: order.OrderID, ProductID: req.ProductID, Quantity: req.Quantity}, nil
}

// commitSequential issues the three writes one after another. A failure
// after the stock write leaves the earlier writes in place.
func (s *Service) commitSequential(ctx context.Context, order purchases.FlashSaleOrder, newStock, observed int, log *zap.Logger) error {
	if err := s.inventory.ConditionalDecrement(ctx, order.ProductID, newStock, observed); err != nil {
		if errors.Is(err, inventory.ErrConditionFailed) {
			return apperrors.Stock(MsgInsufficientStock, err)
		}
		return apperrors.Internal("decrement stock", err)
	}
	if err := s.purchases.CreateOrder(ctx, order); err != nil {
		log.Error("stock decremented but order not recorded", zap.String("orderId", order.OrderID), zap.Error(err))
		return apperrors.Internal("record order", err)
	}
	if err := s.purchases.AddQuantity(ctx, order.UserID, order.ProductID, order.Quantity, s.opts.MaxPurchaseLimit); err != nil {
		if errors.Is(err, purchases.ErrQuotaConditionFailed) {
			log.Error("stock decremented and order recorded but purchase limit reached", zap.String("orderId", order.OrderID), zap.Error(err))
			return apperrors.Quota(MsgLimitReached)
		}
		log.Error("order recorded but purchase total not updated", zap.String("orderId", order.OrderID), zap.Error(err))
		return apperrors.Internal("update purchase total", err)
	}
	return nil
}

func (s *Service) commitAtomic(ctx context.Context, order purchases.FlashSaleOrder, newStock, observed int) error {
	err := s.purchases.CommitPurchase(ctx, purchases.Commit{
		ProductTable:     s.opts.ProductTable,
		ProductID:        order.ProductID,
		NewStock:         newStock,
		MinStock:         observed,
		Order:            order,
		MaxPurchaseLimit: s.opts.MaxPurchaseLimit,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrConditionFailed):
		return apperrors.Stock(MsgInsufficientStock, err)
	case errors.Is(err, purchases.ErrQuotaConditionFailed):
		return apperrors.Quota(MsgLimitReached)
	default:
		return apperrors.Internal("commit purchase", err)
	}
}
