package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/apperrors"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/flashsale"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

// Purchaser runs a flash-sale purchase.
type Purchaser interface {
	Purchase(ctx context.Context, req flashsale.Request) (*flashsale.Result, error)
}

func registerFlashSaleRoutes(r *gin.Engine, svc Purchaser, v *validatorv10.Validate, logger *zap.Logger) {
	r.POST("/flash-sale/purchase", func(c *gin.Context) {
		var req validation.PurchaseRequest
		if err := validation.BindAndValidate(c, &req, v, flashsale.MsgMissingParams); err != nil {
			logger.Info("flash sale request rejected", zap.Error(err))
			return
		}

		res, err := svc.Purchase(c.Request.Context(), flashsale.Request{
			ProductID: req.ProductID,
			UserID:    req.UserID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			writeJSON(c, apperrors.KindOf(err).HTTPStatus(), gin.H{"message": apperrors.PublicMessage(err)})
			return
		}

		writeJSON(c, http.StatusOK, gin.H{
			"message":   flashsale.MsgSuccess,
			"productId": res.ProductID,
			"quantity":  res.Quantity,
		})
	})
}
