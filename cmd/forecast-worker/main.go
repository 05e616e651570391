// Package main is the entrypoint for the forecast worker Lambda function.
//
// The worker consumes ForecastJobMessages from the forecast job queue. It
// stores weekly snapshots, grades past snapshots against the official record
// and crawls the operator's announcements into history.
//
// This file handles dependency wiring (cold start) and delegates the job
// logic to the internal/worker package.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"railrisk/internal/app"
	"railrisk/internal/config"
	"railrisk/internal/db"
	"railrisk/internal/metrics"
	"railrisk/internal/types"
	"railrisk/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("forecast worker initializing (cold start)")

	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "ap-northeast-1"
		}
		provider = config.NewSSMProvider(region)
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	// The Lambda runtime freezes the process between invocations; the pool
	// lives for the life of the container.

	awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	cw := metrics.NewCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricNamespace, logger)
	stack, err := app.NewStack(cfg, pool, s3.NewFromConfig(awsCfg), app.Observers{
		Prediction: cw,
		Source:     cw,
	}, logger)
	if err != nil {
		logger.Error("failed to build prediction stack", "error", err)
		os.Exit(1)
	}

	w := worker.New(
		worker.Deps{
			Gatherer:  stack.Gatherer,
			Engine:    stack.Engine,
			Snapshots: stack.Snapshots,
			History:   stack.History,
			Official:  stack.Official,
			Metrics:   cw,
		},
		worker.WithLocation(stack.Tunables.Location),
		worker.WithConcurrency(cfg.Prediction.MaxConcurrentSources),
		worker.WithLogger(logger),
	)

	logger.Info("forecast worker initialized",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"metric_namespace", cfg.AWS.MetricNamespace,
	)

	// Local mode: read one job from stdin instead of starting the Lambda
	// runtime.
	// Usage: echo '{"action":"forecast","route_ids":["jr-hokkaido.chitose"]}' | go run ./cmd/forecast-worker
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading job from stdin")
		os.Exit(runLocal(ctx, w, os.Stdin, logger))
	}

	lambda.Start(w.Handle)
}

// runLocal wraps the job read from r in a one-record SQS event and returns
// the process exit code.
func runLocal(ctx context.Context, w *worker.Worker, r io.Reader, logger *slog.Logger) int {
	payload, err := io.ReadAll(r)
	if err != nil {
		logger.Error("failed to read stdin", "error", err)
		return 1
	}
	if len(payload) == 0 {
		logger.Error("no input received on stdin")
		return 1
	}

	var msg types.ForecastJobMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Error("invalid job JSON", "error", err)
		return 1
	}
	if msg.JobID == "" {
		msg.JobID = "local"
	}
	body, _ := json.Marshal(msg)

	resp, err := w.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: msg.JobID, Body: string(body)},
	}})
	if err != nil || len(resp.BatchItemFailures) > 0 {
		logger.Error("job failed", "job_id", msg.JobID)
		return 1
	}
	logger.Info("job completed", "job_id", msg.JobID)
	return 0
}
