// Package main is the entry point for the railrisk API server.
//
// It loads configuration, wires the prediction stack, the crowd report store
// and the forecast job producer into the HTTP chassis, and serves until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"railrisk/internal/api/handlers"
	"railrisk/internal/app"
	"railrisk/internal/config"
	"railrisk/internal/core"
	"railrisk/internal/db"
	"railrisk/internal/metrics"
	"railrisk/internal/queue"
	"railrisk/internal/types"
)

const (
	poolSampleInterval = 15 * time.Second
	modelWarmTimeout   = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("railrisk API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		return err
	}

	prom := metrics.NewPrometheus(logger)
	stack, err := app.NewStack(cfg, pool, s3.NewFromConfig(awsCfg), app.Observers{
		Prediction: prom,
		Source:     prom,
	}, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("building prediction stack: %w", err)
	}
	stack.WarmModel(ctx, logger, modelWarmTimeout)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	wireServer(srv, cfg, pool, stack, prom, sqs.NewFromConfig(awsCfg), logger)
	srv.MountRoutes()

	prom.StartPoolCollector(pool, poolSampleInterval)

	return runHTTPServer(srv, cfg, logger)
}

// wireServer attaches handlers, probes and closers to srv.
func wireServer(
	srv *core.Server,
	cfg *config.Config,
	pool *pgxpool.Pool,
	stack *app.Stack,
	prom *metrics.Prometheus,
	sqsClient queue.SQSSender,
	logger *slog.Logger,
) {
	clock := types.RealClock{}

	srv.Metrics = prom
	if cfg.Metrics.Enabled {
		srv.MetricsHandler = prom.Handler()
	}
	srv.RateLimiter = core.NewRateLimiter(cfg.RateLimit, clock, logger)

	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "database",
		Fn:        pool.Ping,
	})
	if stack.Model != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
			ProbeName: "model",
			Fn: func(ctx context.Context) error {
				_, err := stack.Model.Model(ctx)
				return err
			},
		})
	}

	predictions := handlers.NewPredictionHandler(stack.Engine, stack.Gatherer, srv.Validator, clock, logger)
	routes := handlers.NewRoutesHandler(stack.Snapshots, stack.Crowd, srv.Validator, clock, stack.Tunables.Location, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		predictions.RegisterRoutes,
		routes.RegisterRoutes,
	)

	if cfg.AWS.ForecastQueue != "" {
		producer := queue.NewJobProducer(sqsClient, cfg.AWS.ForecastQueue, clock, logger)
		jobs := handlers.NewJobsHandler(producer, srv.Validator, logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, jobs.RegisterRoutes)
	} else {
		logger.Warn("SQS_FORECAST_JOBS not set; forecast job endpoint disabled")
	}

	srv.Closers = append(srv.Closers,
		func() error { prom.Shutdown(); return nil },
		func() error { pool.Close(); return nil },
	)
}

// secretProvider returns nil in local mode, where SSM is never consulted.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "ap-northeast-1"
	}
	return config.NewSSMProvider(region)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Release the pool and stop background collectors.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
