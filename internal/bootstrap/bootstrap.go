// Package bootstrap holds the cold-start wiring shared by the Lambda
// binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/aws"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/config"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/logging"
	"github.com/imrishuroy/go-flashsale-orderflow/internal/metrics"
)

const localAddr = ":8080"

// Env is everything a handler needs at cold start.
type Env struct {
	Config  config.Config
	Logger  *zap.Logger
	Clients *aws.AWSClients
	Metrics metrics.Recorder
}

// Init loads configuration, the logger, AWS clients and the metrics recorder.
// Outside RUN_LOCAL it switches gin to release mode, so it must run before
// any router is built.
func Init(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return &Env{
		Config:  cfg,
		Logger:  logger,
		Clients: clients,
		Metrics: metrics.New(cfg.CloudWatchEnabled, clients.CloudWatch, cfg.CloudWatchNamespace, logger),
	}, nil
}

// Serve runs r as a local HTTP server when RUN_LOCAL=true, and behind the
// API Gateway proxy adapter otherwise.
func (e *Env) Serve(r *gin.Engine) error {
	if e.Config.RunLocal {
		e.Logger.Info("running local server", zap.String("addr", localAddr))
		return r.Run(localAddr)
	}
	adapter := ginadapter.New(r)
	lambda.Start(adapter.ProxyWithContext)
	return nil
}
