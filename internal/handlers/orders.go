package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/checkout"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

// Response messages for the order routes.
const (
	MsgOrderProcessed = "Order processed successfully"
	MsgOrderFailed    = "Order processing failed"
	MsgInvalidOrder   = "Invalid request: malformed order"
	MsgOrderNotFound  = "Order not found"
	MsgInternalError  = "Internal server error"
)

// OrderProcessor runs the checkout saga.
type OrderProcessor interface {
	Process(ctx context.Context, req validation.ProcessOrderRequest) (*checkout.Result, error)
}

// OrderReader loads order records.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

type orderView struct {
	OrderID       string  `json:"orderId"`
	UserID        string  `json:"userId,omitempty"`
	OrderStatus   string  `json:"orderStatus"`
	PaymentStatus string  `json:"paymentStatus,omitempty"`
	TotalAmount   float64 `json:"totalAmount"`
	FailedStage   string  `json:"failedStage,omitempty"`
	CreatedAt     string  `json:"createdAt,omitempty"`
}

func registerOrderRoutes(r *gin.Engine, proc OrderProcessor, reader OrderReader, logger *zap.Logger) {
	if proc != nil {
		r.POST("/orders/process", func(c *gin.Context) {
			var req validation.ProcessOrderRequest
			if err := validation.BindJSON(c, &req, MsgInvalidOrder); err != nil {
				logger.Info("undecodable order body", zap.Error(err))
				return
			}

			res, err := proc.Process(c.Request.Context(), req)
			orderID := req.OrderID
			if res != nil {
				orderID = res.OrderID
			}
			if err != nil {
				writeJSON(c, http.StatusInternalServerError, gin.H{"message": MsgOrderFailed, "orderId": orderID})
				return
			}
			writeJSON(c, http.StatusOK, gin.H{"message": MsgOrderProcessed, "orderId": orderID})
		})
	}

	if reader != nil {
		r.GET("/orders/:orderId", func(c *gin.Context) {
			id := c.Param("orderId")
			o, err := reader.Get(c.Request.Context(), id)
			if err != nil {
				logger.Error("load order", zap.String("orderId", id), zap.Error(err))
				writeJSON(c, http.StatusInternalServerError, gin.H{"message": MsgInternalError})
				return
			}
			if o == nil {
				writeJSON(c, http.StatusNotFound, gin.H{"message": MsgOrderNotFound})
				return
			}

			view := orderView{
				OrderID:       o.OrderID,
				UserID:        o.UserID,
				OrderStatus:   o.OrderStatus,
				PaymentStatus: o.PaymentStatus,
				TotalAmount:   o.TotalAmount,
				FailedStage:   o.FailedStage,
			}
			if !o.CreatedAt.IsZero() {
				view.CreatedAt = o.CreatedAt.UTC().Format(time.RFC3339)
			}
			writeJSON(c, http.StatusOK, view)
		})
	}
}
