package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"railrisk/internal/types"
)

// probabilityTolerance bounds how far backend probabilities may drift from
// summing to one before the output is rejected.
const probabilityTolerance = 1e-3

// Backend produces raw model output for one feature row.
type Backend interface {
	Predict(ctx context.Context, f Features) (Raw, error)
}

// Adapter validates model output and shapes it for the prediction engine.
type Adapter struct {
	backend Backend
	loc     *time.Location
}

// NewAdapter creates an Adapter. loc is the timezone the model's month
// feature was trained in.
func NewAdapter(backend Backend, loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{backend: backend, loc: loc}
}

// Infer runs the backend for the observation at in.Target. Every failure is
// returned as *InferenceError.
func (a *Adapter) Infer(ctx context.Context, in types.PredictionInput, profile types.RouteVulnerabilityProfile) (Inference, error) {
	if in.Weather == nil {
		return Inference{}, &InferenceError{Op: "features", Err: errors.New("no weather observation")}
	}
	f := BuildFeatures(*in.Weather, in.Target, profile, a.loc)

	raw, err := a.backend.Predict(ctx, f)
	if err != nil {
		return Inference{}, &InferenceError{Op: "predict", Err: err}
	}
	out, err := shape(raw)
	if err != nil {
		return Inference{}, &InferenceError{Op: "validate", Err: err}
	}
	return out, nil
}

func shape(raw Raw) (Inference, error) {
	var sum float64
	best := StatusNormal
	for i, p := range raw.Probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Inference{}, fmt.Errorf("probability %d out of range: %v", i, p)
		}
		sum += p
		if p > raw.Probabilities[best] {
			best = ModelStatus(i)
		}
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return Inference{}, fmt.Errorf("probabilities sum to %.4f", sum)
	}
	if math.IsNaN(raw.RecoveryHours) || math.IsInf(raw.RecoveryHours, 0) {
		return Inference{}, fmt.Errorf("recovery hours not finite: %v", raw.RecoveryHours)
	}

	out := Inference{Status: best, Probabilities: raw.Probabilities}
	if best != StatusNormal {
		out.RecoveryHours = math.Max(0, raw.RecoveryHours)
	}
	return out, nil
}
