package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

// RouterConfig groups dependencies for the HTTP surface. Routes whose
// dependency is nil are not registered, so each binary mounts only its own.
type RouterConfig struct {
	Purchaser      Purchaser
	OrderProcessor OrderProcessor
	OrderReader    OrderReader
	Validator      *validatorv10.Validate
	Logger         *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))

	r.GET("/health", func(c *gin.Context) {
		writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Purchaser != nil {
		registerFlashSaleRoutes(r, cfg.Purchaser, cfg.Validator, cfg.Logger)
	}
	if cfg.OrderProcessor != nil || cfg.OrderReader != nil {
		registerOrderRoutes(r, cfg.OrderProcessor, cfg.OrderReader, cfg.Logger)
	}
	return r
}

// RequestLogger emits one structured log line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if rid := c.GetHeader("X-Request-Id"); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	}
}

// writeJSON writes body with Content-Type exactly application/json.
func writeJSON(c *gin.Context, status int, body interface{}) {
	raw, err := json.Marshal(body)
	if err != nil {
		c.Data(http.StatusInternalServerError, "application/json", []byte(`{"message":"Internal server error"}`))
		return
	}
	c.Data(status, "application/json", raw)
}
