package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/app"
	"github.com/sinergia/backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	application, err := app.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("init app", zap.Error(err))
	}
	defer application.Close()

	lambda.Start(application.HandleRequest)
}
