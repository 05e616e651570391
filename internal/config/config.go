// Package config defines the process configuration for the railrisk services.
// Configuration is read once at startup and never modified afterwards.
//
// Values are resolved in priority order:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"railrisk/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// sub-config they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"railrisk"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server     ServerConfig
	Database   DatabaseConfig
	AWS        AWSConfig
	Weather    WeatherConfig
	Official   OfficialConfig
	Inference  InferenceConfig
	Prediction PredictionConfig
	Metrics    MetricsConfig
	RateLimit  RateLimitConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"ap-northeast-1"`
	ForecastQueue   string `envconfig:"SQS_FORECAST_JOBS" validate:"omitempty,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RailRisk"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// WeatherConfig points at the hourly forecast API.
type WeatherConfig struct {
	BaseURL  string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com" validate:"required,url"`
	Timeout  time.Duration `envconfig:"WEATHER_TIMEOUT" default:"8s"`
	Timezone string        `envconfig:"WEATHER_TIMEZONE" default:"Asia/Tokyo"`
}

// OfficialConfig points at the operator status feed.
type OfficialConfig struct {
	BaseURL string        `envconfig:"OFFICIAL_STATUS_URL" validate:"omitempty,url"`
	Timeout time.Duration `envconfig:"OFFICIAL_STATUS_TIMEOUT" default:"5s"`
	// HistoryWindow bounds how much official history feeds the trend adjustment.
	HistoryWindow time.Duration `envconfig:"OFFICIAL_HISTORY_WINDOW" default:"720h"`
}

// InferenceConfig selects where the status/recovery models come from.
// ModelPath may be a local file (optionally .zst) or an s3://bucket/key URI.
// RemoteURL, when set, takes precedence and calls an HTTP inference service.
type InferenceConfig struct {
	Enabled   bool          `envconfig:"INFERENCE_ENABLED" default:"true"`
	ModelPath string        `envconfig:"MODEL_PATH"`
	RemoteURL string        `envconfig:"INFERENCE_URL" validate:"omitempty,url"`
	APIKey    SecretString  `envconfig:"INFERENCE_API_KEY"`
	Timeout   time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"3s"`
}

// PredictionConfig exposes the tunables that were derived empirically and are
// expected to be re-fitted against the historical dataset.
type PredictionConfig struct {
	NearRealTimeWindow    time.Duration `envconfig:"PREDICTION_NEAR_REALTIME_WINDOW" default:"45m" validate:"gt=0"`
	SuppressRatioOfficial float64       `envconfig:"PREDICTION_SUPPRESS_RATIO_OFFICIAL" default:"0.4" validate:"gt=0,lte=1"`
	SuppressRatioDefault  float64       `envconfig:"PREDICTION_SUPPRESS_RATIO_DEFAULT" default:"0.8" validate:"gt=0,lte=1"`
	OfficialStaleAfter    time.Duration `envconfig:"PREDICTION_OFFICIAL_STALE_AFTER" default:"30m" validate:"gt=0"`
	BandSuspended         int           `envconfig:"PREDICTION_BAND_SUSPENDED" default:"70" validate:"gte=0,lte=100"`
	BandDelayed           int           `envconfig:"PREDICTION_BAND_DELAYED" default:"50" validate:"gte=0,lte=100"`
	BandCaution           int           `envconfig:"PREDICTION_BAND_CAUTION" default:"20" validate:"gte=0,lte=100"`
	ResumptionLookahead   int           `envconfig:"PREDICTION_RESUMPTION_LOOKAHEAD_HOURS" default:"24" validate:"gt=0"`
	WeeklyDays            int           `envconfig:"PREDICTION_WEEKLY_DAYS" default:"7" validate:"gt=0,lte=16"`
	MaxConcurrentSources  int           `envconfig:"PREDICTION_MAX_CONCURRENT_SOURCES" default:"5" validate:"gt=0"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// RateLimitConfig bounds per-client request rates on the public API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
