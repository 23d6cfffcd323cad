// Package metrics publishes business and latency metrics to CloudWatch.
package metrics

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
)

// Metric names.
const (
	FlashSalePurchases     = "FlashSalePurchases"
	FlashSaleRejected      = "FlashSaleRejected"
	FlashSaleLatency       = "FlashSaleLatency"
	OrdersProcessed        = "OrdersProcessed"
	OrdersFailed           = "OrdersFailed"
	OrderLatency           = "OrderProcessingLatency"
	NotificationsSent      = "NotificationsDispatched"
	NotificationsFailed    = "NotificationDispatchFailed"
	NotificationsDuplicate = "NotificationDuplicates"
)

// Recorder records metrics. Implementations never fail the caller.
type Recorder interface {
	Count(ctx context.Context, name string, dims map[string]string)
	Latency(ctx context.Context, name string, d time.Duration, dims map[string]string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string, map[string]string)                  {}
func (Nop) Latency(context.Context, string, time.Duration, map[string]string) {}

// CloudWatch sends one datum per call with PutMetricData.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewCloudWatch returns a Recorder bound to namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string, logger *zap.Logger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// New returns a CloudWatch recorder when enabled, Nop otherwise.
func New(enabled bool, client aws.CloudWatchAPI, namespace string, logger *zap.Logger) Recorder {
	if !enabled || client == nil {
		return Nop{}
	}
	return NewCloudWatch(client, namespace, logger)
}

func (c *CloudWatch) Count(ctx context.Context, name string, dims map[string]string) {
	c.put(ctx, name, 1, types.StandardUnitCount, dims)
}

func (c *CloudWatch) Latency(ctx context.Context, name string, d time.Duration, dims map[string]string) {
	c.put(ctx, name, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dims)
}

func (c *CloudWatch) put(ctx context.Context, name string, value float64, unit types.StandardUnit, dims map[string]string) {
	dimensions := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		dimensions = append(dimensions, types.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(v),
		})
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(c.namespace),
		MetricData: []types.MetricDatum{{
			MetricName: sdkaws.String(name),
			Value:      sdkaws.Float64(value),
			Unit:       unit,
			Timestamp:  sdkaws.Time(c.nowFunc()),
			Dimensions: dimensions,
		}},
	})
	if err != nil {
		c.logger.Warn("put metric failed", zap.String("metric", name), zap.Error(err))
	}
}
