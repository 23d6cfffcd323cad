package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/bootstrap"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/checkout"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/config"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/downstream"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/handlers"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/validation"
)

func main() {
	ctx := context.Background()
	env, err := bootstrap.Init(ctx)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer func() { _ = env.Logger.Sync() }()

	cfg := env.Config
	if err := cfg.RequireOrderEvents(); err != nil {
		env.Logger.Fatal("invalid configuration", zap.Error(err))
	}

	var apiKey string
	if cfg.PaymentAPIKeySecret != "" {
		apiKey, err = aws.GetSecretString(ctx, env.Clients.Secrets, cfg.PaymentAPIKeySecret)
		if err != nil {
			env.Logger.Fatal("failed to load payment api key", zap.Error(err))
		}
	}

	var publisher aws.Publisher = aws.NewSNSPublisher(env.Clients.SNS)
	if cfg.EventBus == config.EventBusSQS {
		publisher = aws.NewSQSPublisher(env.Clients.SQS)
	}

	httpOpts := downstream.Options{Timeout: cfg.DownstreamTimeout, Logger: env.Logger}
	orderStore := orders.NewStore(env.Clients.DynamoDB, cfg.OrdersTable)
	validator := validation.New()

	proc := checkout.NewProcessor(checkout.Deps{
		Inventory:  downstream.NewInventoryClient(cfg.InventoryServiceURL, httpOpts),
		Payments:   downstream.NewPaymentClient(cfg.PaymentServiceURL, apiKey, httpOpts),
		Notifier:   downstream.NewNotificationClient(cfg.NotificationServiceURL, httpOpts),
		Orders:     orderStore,
		Publisher:  publisher,
		EventTopic: cfg.OrderEventsTopic(),
		Validator:  validator,
		Metrics:    env.Metrics,
		Logger:     env.Logger,
	})

	r := handlers.NewRouter(handlers.RouterConfig{
		OrderProcessor: proc,
		OrderReader:    orderStore,
		Validator:      validator,
		Logger:         env.Logger,
	})
	if err := env.Serve(r); err != nil {
		env.Logger.Fatal("server stopped", zap.Error(err))
	}
}
