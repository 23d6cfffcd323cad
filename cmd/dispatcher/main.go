package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/bootstrap"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/downstream"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/idempotency"
)

func main() {
	env, err := bootstrap.Init(context.Background())
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer func() { _ = env.Logger.Sync() }()

	cfg := env.Config
	d := dispatch.New(
		idempotency.NewStore(env.Clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		downstream.NewNotificationClient(cfg.NotificationServiceURL, downstream.Options{Timeout: cfg.DownstreamTimeout, Logger: env.Logger}),
		env.Metrics,
		env.Logger,
	)

	// RUN_LOCAL=true pushes a single message through the handler.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"userId":"local-user","message":"local test notification"}`
		}
		resp, err := d.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-message-1", Body: body}},
		})
		if err != nil {
			env.Logger.Fatal("local handler error", zap.Error(err))
		}
		env.Logger.Info("local run finished", zap.Int("failures", len(resp.BatchItemFailures)))
		return
	}

	lambda.Start(d.Handle)
}
