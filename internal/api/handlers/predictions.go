// Package handlers contains the HTTP handlers of the railrisk API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"railrisk/internal/core"
	"railrisk/internal/prediction"
	"railrisk/internal/signals"
	"railrisk/internal/types"
)

const (
	// maxPastTarget is how far behind now a target time may be.
	maxPastTarget = time.Hour
	// maxFutureTarget matches the weather provider's forecast horizon.
	maxFutureTarget = 15 * 24 * time.Hour
)

// Predictor runs the prediction pipeline for one input.
type Predictor interface {
	Predict(ctx context.Context, in types.PredictionInput, opts prediction.PredictOptions) (*types.PredictionResult, error)
}

// SignalGatherer collects the signals for one route.
type SignalGatherer interface {
	Gather(ctx context.Context, routeID string, days int) (*signals.Bundle, error)
}

// PredictionHandler serves on-demand predictions.
type PredictionHandler struct {
	engine    Predictor
	gatherer  SignalGatherer
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

func NewPredictionHandler(engine Predictor, gatherer SignalGatherer, v *core.Validator, clock types.Clock, logger *slog.Logger) *PredictionHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionHandler{
		engine:    engine,
		gatherer:  gatherer,
		validator: v,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes mounts POST /predictions.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predictions", h.HandleCreate)
}

// PredictionRequest is the body of POST /v1/predictions.
type PredictionRequest struct {
	RouteID      string    `json:"route_id" validate:"required,route_id"`
	TargetTime   time.Time `json:"target_time" validate:"required"`
	IncludeTrend bool      `json:"include_trend"`
}

// HandleCreate handles POST /v1/predictions:
//  1. Validate the body and the target window.
//  2. Gather weather, official, crowd, history and precedent signals.
//  3. Build the input for the target hour and run the engine.
//
// Unavailable optional sources are reported in meta.warnings.
func (h *PredictionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	if req.TargetTime.Before(now.Add(-maxPastTarget)) || req.TargetTime.After(now.Add(maxFutureTarget)) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationTimeWindow,
			"target_time must be between one hour ago and 15 days ahead",
			nil,
			map[string]any{"target_time": req.TargetTime},
		))
		return
	}

	bundle, err := h.gatherer.Gather(r.Context(), req.RouteID, signals.DaysFor(now, req.TargetTime))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "signal gather failed",
			"route_id", req.RouteID,
			"error", err,
		)
		core.Error(w, r, upstreamError(err))
		return
	}

	in, ok := bundle.Input(req.TargetTime)
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidTime,
			"no weather forecast covers target_time",
			nil,
		))
		return
	}

	result, err := h.engine.Predict(r.Context(), in, prediction.PredictOptions{IncludeTrend: req.IncludeTrend})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "prediction failed",
			"route_id", req.RouteID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, result, bundle.Warnings)
}

// upstreamError keeps AppErrors and maps anything else to a generic
// upstream failure.
func upstreamError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "signal sources unavailable", err)
}
