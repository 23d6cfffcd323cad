package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/bootstrap"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/flashsale"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/handlers"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/inventory"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/purchases"
)

func main() {
	env, err := bootstrap.Init(context.Background())
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer func() { _ = env.Logger.Sync() }()

	cfg := env.Config
	db := env.Clients.DynamoDB

	svc := flashsale.NewService(
		inventory.NewStore(db, cfg.ProductTable),
		purchases.NewStore(db, cfg.UserSessionTable, cfg.FlashSaleTable),
		flashsale.NewBusNotifier(aws.NewSNSPublisher(env.Clients.SNS), cfg.SNSTopicARN),
		env.Metrics,
		env.Logger,
		flashsale.Options{
			MaxPurchaseLimit: cfg.MaxPurchaseLimit,
			AtomicCommit:     cfg.AtomicCommit,
			ProductTable:     cfg.ProductTable,
		},
	)
	if cfg.SNSTopicARN == "" {
		env.Logger.Warn("SNS_TOPIC_ARN not set; purchase confirmations disabled")
	}

	r := handlers.NewRouter(handlers.RouterConfig{Purchaser: svc, Logger: env.Logger})
	if err := env.Serve(r); err != nil {
		env.Logger.Fatal("server stopped", zap.Error(err))
	}
}
