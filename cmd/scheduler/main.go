// Package main is the entrypoint for the Scheduler Lambda function.
//
// EventBridge rules invoke it with a MaintenancePayload. Enqueue tasks put a
// forecast, score or crawl job on the forecast job queue for the worker;
// purge tasks delete rider reports and official history past retention.
//
// This file handles dependency wiring (cold start) and delegates the task
// routing to the internal/scheduler package.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"railrisk/internal/app"
	"railrisk/internal/config"
	"railrisk/internal/db"
	"railrisk/internal/queue"
	"railrisk/internal/scheduler"
	"railrisk/internal/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("scheduler initializing (cold start)")

	// Only a few variables are read here, so resolve the _SSM_PARAM pointers
	// and read the environment directly.
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "ap-northeast-1"
	}
	if err := config.ResolveSecrets(config.NewSSMProvider(region)); err != nil {
		logger.Error("failed to resolve SSM secrets", "error", err)
		os.Exit(1)
	}

	queueURL := os.Getenv("SQS_FORECAST_JOBS")
	if queueURL == "" {
		logger.Error("SQS_FORECAST_JOBS is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, config.DatabaseConfig{
		URL:      config.SecretString(os.Getenv("DATABASE_URL")),
		MaxConns: 2,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	awsCfg, err := app.LoadAWS(ctx, config.AWSConfig{
		Region:      region,
		EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
	})
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	handler := &scheduler.Handler{
		Jobs: queue.NewJobProducer(sqs.NewFromConfig(awsCfg), queueURL, types.RealClock{}, logger),
		Cleanup: scheduler.NewCleanupService(
			db.NewCrowdReportRepository(pool),
			db.NewOfficialHistoryRepository(pool),
			logger,
		),
		Logger: logger,
	}

	logger.Info("scheduler initialized", "queue_url", queueURL)

	// Local mode: read one payload from stdin instead of starting the Lambda
	// runtime.
	// Usage: echo '{"task":"enqueue_crawl"}' | go run ./cmd/scheduler
	if os.Getenv("APP_ENV") == "local" {
		logger.Info("APP_ENV=local: reading payload from stdin")
		os.Exit(runLocal(ctx, handler, os.Stdin, logger))
	}

	lambda.Start(handler.Handle)
}

func runLocal(ctx context.Context, h *scheduler.Handler, r io.Reader, logger *slog.Logger) int {
	var payload scheduler.MaintenancePayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		logger.Error("invalid payload JSON", "error", err)
		return 1
	}
	result, err := h.Handle(ctx, payload)
	if err != nil {
		logger.Error("task failed", "error", err)
		return 1
	}
	logger.Info(result)
	return 0
}
