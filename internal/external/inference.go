package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"railrisk/internal/inference"
	"railrisk/internal/types"
)

const inferenceProvider = "inference"

// InferenceClientConfig holds the configuration for creating an
// InferenceClient.
type InferenceClientConfig struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

type predictRequest struct {
	Features inference.Features `json:"features"`
}

// InferenceClient implements inference.Backend against a remote model server
// exposing POST /v1/predict.
type InferenceClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewInferenceClient creates an InferenceClient. Inference sits on the
// request path, so it retries once and fails fast.
func NewInferenceClient(httpClient *http.Client, cfg InferenceClientConfig) *InferenceClient {
	base := NewBaseClient(
		httpClient,
		"inference",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    100 * time.Millisecond,
			MaxWait:    500 * time.Millisecond,
		},
		userAgent,
		WithUpstreamCode(types.ErrCodeUpstreamInference),
		WithLogger(cfg.Logger),
	)
	return NewInferenceClientWithBase(base, cfg)
}

// NewInferenceClientWithBase creates an InferenceClient around a
// pre-configured BaseClient.
func NewInferenceClientWithBase(base *BaseClient, cfg InferenceClientConfig) *InferenceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InferenceClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Predict sends one feature row and returns the unvalidated model output.
// The adapter validates the distribution.
func (c *InferenceClient) Predict(ctx context.Context, f inference.Features) (inference.Raw, error) {
	body, err := json.Marshal(predictRequest{Features: f})
	if err != nil {
		return inference.Raw{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize features", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return inference.Raw{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return inference.Raw{}, wrapError(types.ErrCodeUpstreamInference, inferenceProvider, "Predict", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		appErr := statusError(types.ErrCodeUpstreamInference, inferenceProvider, "Predict", resp)
		c.logger.ErrorContext(ctx, "inference API error",
			"status_code", resp.StatusCode,
			"error", appErr.Err,
		)
		return inference.Raw{}, appErr
	}

	var raw inference.Raw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return inference.Raw{}, types.NewAppError(types.ErrCodeUpstreamInference, "failed to decode inference response", err)
	}
	return raw, nil
}

// Compile-time interface compliance check.
var _ inference.Backend = (*InferenceClient)(nil)
