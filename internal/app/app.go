// Package app assembles the prediction stack shared by the API server and
// the forecast worker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"

	"railrisk/internal/config"
	"railrisk/internal/db"
	"railrisk/internal/external"
	"railrisk/internal/inference"
	"railrisk/internal/prediction"
	"railrisk/internal/signals"
	"railrisk/internal/types"
)

// ModelWarmer is implemented by model backends that load lazily.
type ModelWarmer interface {
	Model(ctx context.Context) (*inference.Model, error)
}

// Stack is the wired prediction pipeline.
type Stack struct {
	Tunables  prediction.Tunables
	Engine    *prediction.Engine
	Gatherer  *signals.Gatherer
	Official  *external.OfficialClient
	Snapshots *db.SnapshotRepository
	History   *db.OfficialHistoryRepository
	Crowd     *db.CrowdReportRepository

	// Model is nil when inference is disabled or remote.
	Model ModelWarmer
}

// Observers receive engine and gatherer telemetry. Either may be nil.
type Observers struct {
	Prediction prediction.Observer
	Source     signals.FailureObserver
}

// LoadAWS loads the SDK configuration, honouring a custom endpoint for
// local emulators.
func LoadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// NewStack wires clients, repositories, the model backend, the engine and
// the gatherer from cfg.
func NewStack(cfg *config.Config, pool *pgxpool.Pool, s3Client inference.S3API, obs Observers, logger *slog.Logger) (*Stack, error) {
	tun := prediction.TunablesFromConfig(cfg.Prediction)

	weather := external.NewWeatherClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		external.WeatherClientConfig{
			BaseURL:  cfg.Weather.BaseURL,
			Timezone: cfg.Weather.Timezone,
			Logger:   logger,
		},
	)
	official := external.NewOfficialClient(
		&http.Client{Timeout: cfg.Official.Timeout},
		external.OfficialClientConfig{
			BaseURL:  cfg.Official.BaseURL,
			Location: tun.Location,
			Clock:    types.RealClock{},
			Logger:   logger,
		},
	)

	st := &Stack{
		Tunables:  tun,
		Official:  official,
		Snapshots: db.NewSnapshotRepository(pool),
		History:   db.NewOfficialHistoryRepository(pool),
		Crowd:     db.NewCrowdReportRepository(pool),
	}

	engineOpts := []prediction.Option{prediction.WithLogger(logger)}
	if obs.Prediction != nil {
		engineOpts = append(engineOpts, prediction.WithObserver(obs.Prediction))
	}
	backend, err := st.modelBackend(cfg.Inference, s3Client, logger)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		engineOpts = append(engineOpts, prediction.WithModel(inference.NewAdapter(backend, tun.Location)))
	}
	st.Engine = prediction.NewEngine(tun, engineOpts...)

	gatherOpts := []signals.Option{signals.WithLogger(logger)}
	if obs.Source != nil {
		gatherOpts = append(gatherOpts, signals.WithFailureObserver(obs.Source))
	}
	st.Gatherer = signals.NewGatherer(
		signals.Sources{
			Weather:   weather,
			Official:  official,
			Crowd:     st.Crowd,
			History:   st.History,
			Precedent: db.NewPrecedentRepository(pool),
		},
		signals.Config{
			HistoryWindow: cfg.Official.HistoryWindow,
			MaxConcurrent: cfg.Prediction.MaxConcurrentSources,
		},
		gatherOpts...,
	)

	logger.Info("prediction stack ready",
		"model", backend != nil,
		"remote_model", cfg.Inference.RemoteURL != "",
	)
	return st, nil
}

// modelBackend prefers a remote model server over a local artifact. It
// returns nil when inference is off, leaving the engine on rules.
func (st *Stack) modelBackend(cfg config.InferenceConfig, s3Client inference.S3API, logger *slog.Logger) (inference.Backend, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.RemoteURL != "" {
		return external.NewInferenceClient(
			&http.Client{Timeout: cfg.Timeout},
			external.InferenceClientConfig{
				BaseURL: cfg.RemoteURL,
				APIKey:  cfg.APIKey.Unmask(),
				Logger:  logger,
			},
		), nil
	}
	if cfg.ModelPath == "" {
		return nil, nil
	}
	src, err := inference.NewSource(cfg.ModelPath, s3Client)
	if err != nil {
		return nil, fmt.Errorf("model source: %w", err)
	}
	store := inference.NewStore(src, logger)
	st.Model = store
	return store, nil
}

// WarmModel loads a lazily loaded model ahead of the first request. A load
// failure is logged and left for the engine's rules fallback.
func (st *Stack) WarmModel(ctx context.Context, logger *slog.Logger, timeout time.Duration) {
	if st.Model == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := st.Model.Model(ctx); err != nil {
		logger.WarnContext(ctx, "model warm-up failed", "error", err)
	}
}
